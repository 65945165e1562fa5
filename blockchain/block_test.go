package blockchain

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlock() *Block {
	var parent Hash
	parent[0] = 0xab
	parent[31] = 0x01
	return NewBlock(parent, 3, 1597680000, []Tx{
		NewTx("alice", "bob", 50, ""),
		NewTx("system", "bob", 100, RewardData),
	})
}

func TestBlockJSON(t *testing.T) {
	block := NewBlock(Hash{}, 0, 42, []Tx{NewTx("alice", "bob", 50, "")})
	buf, err := json.Marshal(block)
	require.NoError(t, err)
	expected := `{"header":{"parent":"` + strings.Repeat("0", 64) + `","number":0,"time":42},` +
		`"payload":[{"from":"alice","to":"bob","value":50,"data":""}]}`
	require.Equal(t, expected, string(buf))
}

func TestBlockHashRoundTrip(t *testing.T) {
	block := testBlock()
	hash, err := block.Hash()
	require.NoError(t, err)

	buf, err := json.Marshal(block)
	require.NoError(t, err)
	var decoded Block
	require.NoError(t, json.Unmarshal(buf, &decoded))
	decodedHash, err := decoded.Hash()
	require.NoError(t, err)
	require.Equal(t, hash, decodedHash)
	require.Equal(t, block, &decoded)
}

func TestBlockHashDeterministic(t *testing.T) {
	a, err := testBlock().Hash()
	require.NoError(t, err)
	b, err := testBlock().Hash()
	require.NoError(t, err)
	require.Equal(t, a, b)

	changed := testBlock()
	changed.Header.Time++
	c, err := changed.Hash()
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	// nil and empty payloads hash the same.
	empty, err := (&Block{}).Hash()
	require.NoError(t, err)
	alsoEmpty, err := NewBlock(Hash{}, 0, 0, nil).Hash()
	require.NoError(t, err)
	require.Equal(t, empty, alsoEmpty)
}

func TestBlockHashRejectsInvalidUTF8(t *testing.T) {
	block := NewBlock(Hash{}, 0, 1, []Tx{NewTx("system", "x\xff", 5, RewardData)})
	_, err := block.Hash()
	require.Error(t, err)
	require.Equal(t, KindInvalidTx, Kind(err))
	_, err = block.Record()
	require.Error(t, err)
}

func TestBlockHashUnescapedHTML(t *testing.T) {
	block := NewBlock(Hash{}, 0, 42, []Tx{NewTx("a<b>", "c&d", 50, "")})
	expected := `{"header":{"parent":"` + strings.Repeat("0", 64) + `","number":0,"time":42},` +
		`"payload":[{"from":"a<b>","to":"c&d","value":50,"data":""}]}`
	hash, err := block.Hash()
	require.NoError(t, err)
	require.Equal(t, Hash(sha256.Sum256([]byte(expected))), hash)

	// The log line escapes HTML, the hash survives the round trip anyway.
	record, err := block.Record()
	require.NoError(t, err)
	buf, err := json.Marshal(record)
	require.NoError(t, err)
	var decoded Record
	require.NoError(t, json.Unmarshal(buf, &decoded))
	require.NoError(t, decoded.Verify())
}

func TestRecordJSONAndVerify(t *testing.T) {
	record, err := testBlock().Record()
	require.NoError(t, err)
	require.NoError(t, record.Verify())

	buf, err := json.Marshal(record)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(buf), `{"key":"`+record.Key.Hex()+`","block":{"header":`))

	var decoded Record
	require.NoError(t, json.Unmarshal(buf, &decoded))
	require.NoError(t, decoded.Verify())
	require.Equal(t, record.Key, decoded.Key)

	decoded.Value.Payload[0].Value++
	require.Error(t, decoded.Verify())
}

func TestBlockCopy(t *testing.T) {
	block := testBlock()
	c := block.Copy()
	require.Equal(t, block, c)
	c.Payload[0].Value = 1
	assert.Equal(t, uint64(50), block.Payload[0].Value)
	assert.Nil(t, (*Block)(nil).Copy())
}

func TestParseHash(t *testing.T) {
	block := testBlock()
	hash, err := block.Hash()
	require.NoError(t, err)

	parsed, err := ParseHash(hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, hash, parsed)

	parsed, err = ParseHash("0x" + strings.ToUpper(hash.Hex()))
	require.NoError(t, err)
	assert.Equal(t, hash, parsed)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
	_, err = ParseHash(strings.Repeat("zz", HashSize))
	assert.Error(t, err)

	assert.True(t, Hash{}.IsZero())
	assert.False(t, hash.IsZero())
}
