package blockchain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestApplyTxTransfer(t *testing.T) {
	balances := Balances{"alice": 1000000}
	require.NoError(t, ApplyTx(balances, NewTx("alice", "bob", 50, "")))
	assert.Equal(t, Balances{"alice": 999950, "bob": 50}, balances)
}

func TestApplyTxInsufficientFunds(t *testing.T) {
	balances := Balances{"alice": 1000000}
	err := ApplyTx(balances, NewTx("alice", "bob", 2000000, ""))
	require.Error(t, err)

	var fundsErr *InsufficientFundsError
	require.True(t, xerrors.As(err, &fundsErr))
	assert.Equal(t, Account("alice"), fundsErr.Account)
	assert.Equal(t, uint64(1000000), fundsErr.Balance)
	assert.Equal(t, uint64(2000000), fundsErr.Required)
	assert.Equal(t, KindInsufficientFunds, Kind(err))
	assert.Equal(t, Balances{"alice": 1000000}, balances)

	// Unknown senders have a zero balance.
	err = ApplyTx(balances, NewTx("carol", "bob", 1, ""))
	require.True(t, xerrors.As(err, &fundsErr))
	assert.Equal(t, uint64(0), fundsErr.Balance)
	assert.Equal(t, Balances{"alice": 1000000}, balances)
}

func TestApplyTxReward(t *testing.T) {
	balances := Balances{"bob": 5}
	require.NoError(t, ApplyTx(balances, NewTx("system", "bob", 100, RewardData)))
	assert.Equal(t, Balances{"bob": 105}, balances)

	_, hasSystem := balances["system"]
	assert.False(t, hasSystem, "a reward never touches its sender")
}

func TestApplyTxSelfTransfer(t *testing.T) {
	balances := Balances{"alice": 10}
	require.NoError(t, ApplyTx(balances, NewTx("alice", "alice", 10, "")))
	assert.Equal(t, Balances{"alice": 10}, balances)

	require.Error(t, ApplyTx(balances, NewTx("alice", "alice", 11, "")))
	assert.Equal(t, Balances{"alice": 10}, balances)
}

func TestApplyTxOverflow(t *testing.T) {
	balances := Balances{"alice": 10, "bob": math.MaxUint64}
	err := ApplyTx(balances, NewTx("alice", "bob", 1, ""))
	require.Error(t, err)
	assert.Equal(t, KindOverflow, Kind(err))

	err = ApplyTx(balances, NewTx("system", "bob", 1, RewardData))
	require.Error(t, err)
	assert.Equal(t, Balances{"alice": 10, "bob": math.MaxUint64}, balances)
}

func TestApplyTxsConservesTotal(t *testing.T) {
	balances := Balances{"alice": 1000, "bob": 300, "carol": 0}
	txs := []Tx{
		NewTx("alice", "bob", 250, ""),
		NewTx("bob", "carol", 400, ""),
		NewTx("carol", "alice", 1, "hello"),
		NewTx("system", "carol", 70, RewardData),
		NewTx("alice", "dave", 749, ""),
	}
	before := balances.Total()
	require.NoError(t, ApplyTxs(balances, txs))
	assert.Equal(t, before+70, balances.Total())
	assert.Equal(t, Balances{"alice": 2, "bob": 150, "carol": 469, "dave": 749}, balances)
}

func TestApplyTxsStopsAtFirstFailure(t *testing.T) {
	balances := Balances{"alice": 10}
	err := ApplyTxs(balances, []Tx{
		NewTx("alice", "bob", 4, ""),
		NewTx("bob", "carol", 5, ""),
		NewTx("alice", "carol", 1, ""),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx 1")
	assert.Equal(t, KindInsufficientFunds, Kind(err))
	assert.Equal(t, Balances{"alice": 6, "bob": 4}, balances)
}

func TestTxValidate(t *testing.T) {
	tests := []struct {
		name string
		tx   Tx
		ok   bool
	}{
		{"transfer", NewTx("alice", "bob", 1, ""), true},
		{"reward", NewTx("system", "bob", 1, RewardData), true},
		{"zero value", NewTx("alice", "bob", 0, ""), false},
		{"no sender", NewTx("", "bob", 1, ""), false},
		{"no recipient", NewTx("alice", "", 1, RewardData), false},
		{"binary sender", NewTx("x\xff", "bob", 1, ""), false},
		{"binary recipient", NewTx("system", "x\xfe", 1, RewardData), false},
		{"binary data", NewTx("alice", "bob", 1, "\xc3("), false},
		{"unicode accounts", NewTx("zoë", "<bob&co>", 1, ""), true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.tx.Validate()
			if test.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, KindInvalidTx, Kind(err))
		})
	}
}
