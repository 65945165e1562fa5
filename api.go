package tbb

/*
The api.go defines the methods that can be called from the outside. The
client talks to a single tbb node over HTTP.
*/

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	bc "tbb/blockchain"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// DefaultTimeout bounds a single request to the node.
const DefaultTimeout = 10 * time.Second

// Client is a structure to communicate with a tbb node.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient instantiates a new tbb.Client for the node at nodeURL, e.g.
// "http://127.0.0.1:8080".
func NewClient(nodeURL string) *Client {
	return &Client{
		url:        strings.TrimRight(nodeURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// NodeError is a failure reported by the node.
type NodeError struct {
	Status  int
	Kind    string
	Message string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node replied %d (%s): %s", e.Status, e.Kind, e.Message)
}

// BalancesList returns the committed balances of the node.
func (c *Client) BalancesList() (*BalancesListReply, error) {
	reply := &BalancesListReply{}
	if err := c.do(http.MethodGet, "/balances/list", nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// AddTx submits req and returns the hash of the block committing it.
func (c *Client) AddTx(req *TxAddRequest) (*TxAddReply, error) {
	reply := &TxAddReply{}
	if err := c.do(http.MethodPost, "/tx/add", req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Block returns the record of a block given its number or its hex hash.
func (c *Client) Block(id string) (*bc.Record, error) {
	reply := &bc.Record{}
	if err := c.do(http.MethodGet, "/blocks/"+url.PathEscape(id), nil, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) do(method, path string, body, reply interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return xerrors.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.url+path, reader)
	if err != nil {
		return xerrors.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	log.Lvl4("Sending", method, req.URL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.Errorf("contacting node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		nodeErr := &NodeError{Status: resp.StatusCode}
		var errReply ErrorReply
		if err := json.NewDecoder(resp.Body).Decode(&errReply); err != nil {
			nodeErr.Message = resp.Status
		} else {
			nodeErr.Kind = errReply.Kind
			nodeErr.Message = errReply.Error
		}
		return nodeErr
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return xerrors.Errorf("decoding reply: %w", err)
	}
	return nil
}
