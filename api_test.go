package tbb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	bc "tbb/blockchain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestClientBalancesList(t *testing.T) {
	hash := bc.Hash{0xab}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/balances/list", r.URL.Path)
		w.Write([]byte(`{"block_hash":"` + hash.Hex() + `","balances":{"alice":7}}`))
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL + "/").BalancesList()
	require.NoError(t, err)
	require.Equal(t, hash, reply.Hash)
	require.Equal(t, bc.Balances{"alice": 7}, reply.Balances)
}

func TestClientAddTx(t *testing.T) {
	hash := bc.Hash{0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tx/add", r.URL.Path)
		var req TxAddRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, bc.NewTx("system", "bob", 100, bc.RewardData), req.Tx())
		json.NewEncoder(w).Encode(&TxAddReply{Hash: hash})
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL).AddTx(&TxAddRequest{
		From:  "system",
		To:    "bob",
		Value: 100,
		Data:  bc.RewardData,
	})
	require.NoError(t, err)
	require.Equal(t, hash, reply.Hash)
}

func TestClientNodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(&ErrorReply{Error: "alice holds 1 TBB", Kind: bc.KindInsufficientFunds})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).AddTx(&TxAddRequest{From: "alice", To: "bob", Value: 2})
	var nodeErr *NodeError
	require.True(t, xerrors.As(err, &nodeErr))
	require.Equal(t, http.StatusBadRequest, nodeErr.Status)
	require.Equal(t, bc.KindInsufficientFunds, nodeErr.Kind)
	require.Equal(t, "alice holds 1 TBB", nodeErr.Message)
}

func TestClientNodeErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Block("0")
	var nodeErr *NodeError
	require.True(t, xerrors.As(err, &nodeErr))
	require.Equal(t, http.StatusBadGateway, nodeErr.Status)
	require.Empty(t, nodeErr.Kind)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).BalancesList()
	require.Error(t, err)
	var nodeErr *NodeError
	require.False(t, xerrors.As(err, &nodeErr))
}

func TestTxAddRequestOmitsEmptyData(t *testing.T) {
	buf, err := json.Marshal(&TxAddRequest{From: "alice", To: "bob", Value: 5})
	require.NoError(t, err)
	require.JSONEq(t, `{"from":"alice","to":"bob","value":5}`, string(buf))
}
