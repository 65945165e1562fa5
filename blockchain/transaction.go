package blockchain

import (
	"fmt"
	"math/bits"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

// Tx moves Value from From to To, or issues Value to To when it is a reward.
type Tx struct {
	From  Account `json:"from"`
	To    Account `json:"to"`
	Value uint64  `json:"value"`
	// Data is free-form; RewardData turns the tx into a reward.
	Data string `json:"data"`
}

func NewTx(from, to Account, value uint64, data string) Tx {
	return Tx{
		From:  from,
		To:    to,
		Value: value,
		Data:  data,
	}
}

func (tx Tx) IsReward() bool {
	return tx.Data == RewardData
}

// Validate checks the fields of a tx submitted from outside. Replayed txs
// are not validated, the log is trusted.
func (tx Tx) Validate() error {
	switch {
	case tx.From == "":
		return &InvalidTxError{Reason: "missing sender"}
	case tx.To == "":
		return &InvalidTxError{Reason: "missing recipient"}
	case tx.Value == 0:
		return &InvalidTxError{Reason: "value must be positive"}
	}
	return tx.checkEncoding()
}

// checkEncoding rejects strings that would not survive a JSON round trip.
func (tx Tx) checkEncoding() error {
	for _, field := range []struct{ name, value string }{
		{"sender", string(tx.From)},
		{"recipient", string(tx.To)},
		{"data", tx.Data},
	} {
		if !utf8.ValidString(field.value) {
			return &InvalidTxError{Reason: field.name + " is not valid UTF-8"}
		}
	}
	return nil
}

func (tx Tx) String() string {
	if tx.IsReward() {
		return fmt.Sprintf("reward %d TBB -> %s", tx.Value, tx.To)
	}
	return fmt.Sprintf("%s -> %s %d TBB", tx.From, tx.To, tx.Value)
}

// ApplyTx applies tx to balances in place. On error balances are left
// untouched.
func ApplyTx(balances Balances, tx Tx) error {
	toBalance := balances[tx.To]
	if tx.IsReward() {
		credited, carry := bits.Add64(toBalance, tx.Value, 0)
		if carry != 0 {
			return &OverflowError{Account: tx.To, Balance: toBalance, Credit: tx.Value}
		}
		balances[tx.To] = credited
		return nil
	}

	fromBalance := balances[tx.From]
	if tx.Value > fromBalance {
		return &InsufficientFundsError{
			Account:  tx.From,
			Balance:  fromBalance,
			Required: tx.Value,
		}
	}
	if tx.From == tx.To {
		return nil
	}
	credited, carry := bits.Add64(toBalance, tx.Value, 0)
	if carry != 0 {
		return &OverflowError{Account: tx.To, Balance: toBalance, Credit: tx.Value}
	}
	balances[tx.From] = fromBalance - tx.Value
	balances[tx.To] = credited
	return nil
}

// ApplyTxs applies txs in order. It stops at the first failure; the caller
// owns rollback, usually by applying to a copy.
func ApplyTxs(balances Balances, txs []Tx) error {
	for i, tx := range txs {
		if err := ApplyTx(balances, tx); err != nil {
			return xerrors.Errorf("tx %d: %w", i, err)
		}
	}
	return nil
}
