package blockchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

type BlockHeader struct {
	// Hash of the previous block, zero for the first block.
	Parent Hash `json:"parent"`
	// Number of the block in the chain. Number = 0 -> first block.
	Number uint64 `json:"number"`
	// Time the block was created, unix seconds.
	Time uint64 `json:"time"`
}

type Block struct {
	Header  BlockHeader `json:"header"`
	Payload []Tx        `json:"payload"`
}

// Record is one line of the ledger log. Key must equal Value.Hash().
type Record struct {
	Key   Hash  `json:"key"`
	Value Block `json:"block"`
}

func NewBlock(parent Hash, number uint64, timestamp uint64, txs []Tx) *Block {
	payload := make([]Tx, len(txs))
	copy(payload, txs)
	return &Block{
		Header: BlockHeader{
			Parent: parent,
			Number: number,
			Time:   timestamp,
		},
		Payload: payload,
	}
}

// Hash hashes the canonical JSON encoding of the block. Field order follows
// the struct definitions, so the encoding is stable. HTML characters are not
// escaped, matching plain JSON encoders. Strings must be valid UTF-8, which
// is all a JSON round trip preserves.
func (b *Block) Hash() (Hash, error) {
	canonical := Block{Header: b.Header, Payload: b.Payload}
	if canonical.Payload == nil {
		canonical.Payload = []Tx{}
	}
	for i, tx := range canonical.Payload {
		if err := tx.checkEncoding(); err != nil {
			return Hash{}, xerrors.Errorf("tx %d: %w", i, err)
		}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(&canonical); err != nil {
		return Hash{}, xerrors.Errorf("failed to serialize block: %w", err)
	}
	return sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Record pairs the block with its hash.
func (b *Block) Record() (*Record, error) {
	hash, err := b.Hash()
	if err != nil {
		return nil, err
	}
	return &Record{Key: hash, Value: *b.Copy()}, nil
}

// Copy makes a deep copy of the Block
func (b *Block) Copy() *Block {
	if b == nil {
		return nil
	}
	return NewBlock(b.Header.Parent, b.Header.Number, b.Header.Time, b.Payload)
}

// Verify checks that the stored key matches the block contents.
func (r *Record) Verify() error {
	hash, err := r.Value.Hash()
	if err != nil {
		return err
	}
	if hash != r.Key {
		return xerrors.Errorf("record key %s does not match block hash %s", r.Key, hash)
	}
	return nil
}

func (b *Block) String() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Block %d", b.Header.Number))
	builder.WriteString(fmt.Sprintf("\n\tTime: %s", time.Unix(int64(b.Header.Time), 0).UTC().Format("2006-01-02 15:04:05")))
	builder.WriteString(fmt.Sprintf("\n\tParent: %s", b.Header.Parent))
	builder.WriteString(fmt.Sprintf("\n\tTxs: %d", len(b.Payload)))
	for _, tx := range b.Payload {
		builder.WriteString(fmt.Sprintf("\n\t\t%s", tx))
	}
	return builder.String()
}
