package tbb

/*
This holds the messages exchanged with a tbb node over HTTP.
*/

import (
	bc "tbb/blockchain"
)

// BalancesListReply is the committed balances and the hash of the block
// they were read at.
type BalancesListReply struct {
	Hash     bc.Hash     `json:"block_hash"`
	Balances bc.Balances `json:"balances"`
}

// TxAddRequest submits one transaction, committed as a block of its own.
type TxAddRequest struct {
	From  bc.Account `json:"from"`
	To    bc.Account `json:"to"`
	Value uint64     `json:"value"`
	Data  string     `json:"data,omitempty"`
}

// Tx returns the transaction described by the request.
func (r *TxAddRequest) Tx() bc.Tx {
	return bc.NewTx(r.From, r.To, r.Value, r.Data)
}

// TxAddReply returns the hash of the block holding the transaction.
type TxAddReply struct {
	Hash bc.Hash `json:"block_hash"`
}

// ErrorReply is the body of every failed request.
type ErrorReply struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
