// Package node serves a data directory over HTTP. Every request rebuilds
// the ledger state from disk, one request at a time.
package node

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tbb"
	bc "tbb/blockchain"
	"tbb/service"

	"github.com/gorilla/mux"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// KindBadRequest reports a request the node could not decode.
const KindBadRequest = "BadRequest"

// Server is the HTTP node of a data directory.
type Server struct {
	dataDir string
	opts    []service.Option
	router  *mux.Router

	// mu serializes requests, each of which owns the data directory while
	// it runs.
	mu  sync.Mutex
	srv *http.Server
}

// NewServer returns a node for dataDir. opts are passed to every State it
// builds.
func NewServer(dataDir string, opts ...service.Option) *Server {
	s := &Server{
		dataDir: dataDir,
		opts:    opts,
		router:  mux.NewRouter(),
	}
	s.router.HandleFunc("/balances/list", s.balancesList).Methods(http.MethodGet)
	s.router.HandleFunc("/tx/add", s.txAdd).Methods(http.MethodPost)
	s.router.HandleFunc("/blocks/{id}", s.block).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	log.Info("Serving", s.dataDir, "on", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return xerrors.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown stops the listener and waits for the running request.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// withState runs f on a State rebuilt from disk and closes it afterwards.
func (s *Server) withState(f func(*service.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := service.NewStateFromDisk(s.dataDir, s.opts...)
	if err != nil {
		return err
	}
	err = f(state)
	if cerr := state.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) balancesList(w http.ResponseWriter, r *http.Request) {
	reply := &tbb.BalancesListReply{}
	err := s.withState(func(state *service.State) error {
		reply.Hash = state.LatestBlockHash()
		reply.Balances = state.Balances()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) txAdd(w http.ResponseWriter, r *http.Request) {
	var req tbb.TxAddRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &tbb.ErrorReply{
			Error: "invalid request body: " + err.Error(),
			Kind:  KindBadRequest,
		})
		return
	}

	reply := &tbb.TxAddReply{}
	err := s.withState(func(state *service.State) error {
		if err := state.AddTx(req.Tx()); err != nil {
			return err
		}
		hash, err := state.Persist()
		if err != nil {
			return err
		}
		reply.Hash = hash
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) block(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var lookup func(*service.State) (*bc.Record, error)
	if number, err := strconv.ParseUint(id, 10, 64); err == nil {
		lookup = func(state *service.State) (*bc.Record, error) {
			return state.GetBlockByNumber(number)
		}
	} else if hash, err := bc.ParseHash(id); err == nil {
		lookup = func(state *service.State) (*bc.Record, error) {
			return state.GetBlockByHash(hash)
		}
	} else {
		writeJSON(w, http.StatusBadRequest, &tbb.ErrorReply{
			Error: "block id must be a number or a hash: " + id,
			Kind:  KindBadRequest,
		})
		return
	}

	var record *bc.Record
	err := s.withState(func(state *service.State) error {
		var err error
		record, err = lookup(state)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// statusOf maps a ledger error kind to an HTTP status.
func statusOf(kind string) int {
	switch kind {
	case bc.KindInvalidTx, bc.KindInsufficientFunds, bc.KindOverflow, bc.KindEmptyPool:
		return http.StatusBadRequest
	case bc.KindNotFound:
		return http.StatusNotFound
	case bc.KindSequenceMismatch, bc.KindParentMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := bc.Kind(err)
	status := statusOf(kind)
	if status == http.StatusInternalServerError {
		log.Error(err)
	} else {
		log.Lvl2("Rejected request:", err)
	}
	writeJSON(w, status, &tbb.ErrorReply{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Couldn't write reply:", err)
	}
}
