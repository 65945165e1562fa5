package blockchain

import (
	"encoding/hex"

	"golang.org/x/xerrors"
)

const HashSize = 32

// RewardData marks a transaction that issues value instead of moving it.
const RewardData = "reward"

// Hash is the SHA-256 of the canonical JSON form of a block.
type Hash [HashSize]byte

// Account identifies a balance holder.
type Account string

// Balances maps every known account to its balance.
type Balances map[Account]uint64

// Copy returns an independent copy of the balances.
func (b Balances) Copy() Balances {
	c := make(Balances, len(b))
	for account, balance := range b {
		c[account] = balance
	}
	return c
}

// Total sums all balances. It is only meaningful while the sum fits in
// 64 bits, which tests rely on.
func (b Balances) Total() uint64 {
	var total uint64
	for _, balance := range b {
		total += balance
	}
	return total
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// MarshalText encodes the hash as lowercase hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText decodes a hex hash, with or without a 0x prefix.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes the hex form of a hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	buf, err := hex.DecodeString(s)
	if err != nil {
		return h, xerrors.Errorf("couldn't decode hash %q: %w", s, err)
	}
	if len(buf) != HashSize {
		return h, xerrors.Errorf("hash must be %d bytes, got %d", HashSize, len(buf))
	}
	copy(h[:], buf)
	return h, nil
}
