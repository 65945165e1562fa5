package blockchain

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Error kinds reported at the CLI and HTTP boundary.
const (
	KindConfig            = "ConfigError"
	KindCorruptLog        = "CorruptLog"
	KindSequenceMismatch  = "SequenceMismatch"
	KindParentMismatch    = "ParentMismatch"
	KindInsufficientFunds = "InsufficientFunds"
	KindIO                = "IoError"
	KindInvalidTx         = "InvalidTx"
	KindOverflow          = "Overflow"
	KindEmptyPool         = "EmptyPool"
	KindNotFound          = "NotFound"
	KindInternal          = "Internal"
)

var (
	// ErrEmptyPool is returned when persisting with no pending transactions.
	ErrEmptyPool = xerrors.New("no pending transactions to persist")
	// ErrBlockNotFound is returned by block lookups that miss.
	ErrBlockNotFound = xerrors.New("no such block")
)

// ConfigError reports a missing or malformed genesis or configuration file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CorruptLogError reports a ledger record that cannot be trusted. Line is
// 1-based.
type CorruptLogError struct {
	Line int
	Err  error
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt ledger log at line %d: %v", e.Line, e.Err)
}

func (e *CorruptLogError) Unwrap() error { return e.Err }

type SequenceMismatchError struct {
	Expected uint64
	Got      uint64
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("next expected block number must be %d not %d", e.Expected, e.Got)
}

type ParentMismatchError struct {
	Expected Hash
	Got      Hash
}

func (e *ParentMismatchError) Error() string {
	return fmt.Sprintf("next block parent hash must be %s not %s", e.Expected, e.Got)
}

type InsufficientFundsError struct {
	Account  Account
	Balance  uint64
	Required uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("wrong tx: sender %s balance is %d TBB, tx cost is %d TBB",
		e.Account, e.Balance, e.Required)
}

// OverflowError is returned when crediting would overflow a balance.
type OverflowError struct {
	Account Account
	Balance uint64
	Credit  uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("crediting %d TBB to %s would overflow balance %d",
		e.Credit, e.Account, e.Balance)
}

type InvalidTxError struct {
	Reason string
}

func (e *InvalidTxError) Error() string {
	return "invalid tx: " + e.Reason
}

// IOError wraps a failed append or sync of the ledger log.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Kind names the failure class of err, or KindInternal if it is not one of
// the ledger errors.
func Kind(err error) string {
	var (
		configErr   *ConfigError
		corruptErr  *CorruptLogError
		seqErr      *SequenceMismatchError
		parentErr   *ParentMismatchError
		fundsErr    *InsufficientFundsError
		overflowErr *OverflowError
		invalidErr  *InvalidTxError
		ioErr       *IOError
	)
	switch {
	case err == nil:
		return ""
	case xerrors.As(err, &corruptErr):
		return KindCorruptLog
	case xerrors.As(err, &configErr):
		return KindConfig
	case xerrors.As(err, &seqErr):
		return KindSequenceMismatch
	case xerrors.As(err, &parentErr):
		return KindParentMismatch
	case xerrors.As(err, &fundsErr):
		return KindInsufficientFunds
	case xerrors.As(err, &overflowErr):
		return KindOverflow
	case xerrors.As(err, &invalidErr):
		return KindInvalidTx
	case xerrors.As(err, &ioErr):
		return KindIO
	case xerrors.Is(err, ErrEmptyPool):
		return KindEmptyPool
	case xerrors.Is(err, ErrBlockNotFound):
		return KindNotFound
	}
	return KindInternal
}
