package service

import (
	bc "tbb/blockchain"
	"tbb/storage"
)

// BlockReader streams committed records, oldest first.
type BlockReader interface {
	Scan() *storage.Scanner
}

// BlockWriter appends records to the ledger log.
type BlockWriter interface {
	Append(record *bc.Record) error
	Sync() error
}

// BlockLog is the ledger log as injected into State. *storage.Log
// implements it.
type BlockLog interface {
	BlockReader
	BlockWriter
	Close() error
}

// Option configures a State.
type Option func(*State)

// WithClock sets the source of block timestamps.
func WithClock(clock Clock) Option {
	return func(s *State) {
		s.clock = clock
	}
}

// WithBlockDB attaches a block index. State keeps it in line with the log
// and closes it on Close.
func WithBlockDB(db *storage.BlockDB) Option {
	return func(s *State) {
		s.db = db
	}
}

// txPool holds accepted transactions in arrival order until they are
// persisted.
type txPool struct {
	txs []bc.Tx
}

func (p *txPool) add(tx bc.Tx) {
	p.txs = append(p.txs, tx)
}

func (p *txPool) list() []bc.Tx {
	txs := make([]bc.Tx, len(p.txs))
	copy(txs, p.txs)
	return txs
}

func (p *txPool) len() int {
	return len(p.txs)
}

func (p *txPool) reset(txs []bc.Tx) {
	p.txs = txs
}
