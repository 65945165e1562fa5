package blockchain

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

const (
	defaultChainID     = "the-blockchain-bar-ledger"
	defaultGenesisTime = "2019-03-18T00:00:00.000000000Z"
)

// defaultBalances seed a freshly initialized data directory.
var defaultBalances = Balances{
	"andrej": 1000000,
}

// Genesis is the document seeding the ledger before any block exists.
type Genesis struct {
	Time     string   `json:"genesis_time"`
	ChainID  string   `json:"chain_id"`
	Balances Balances `json:"balances"`
}

func DefaultGenesis() *Genesis {
	return &Genesis{
		Time:     defaultGenesisTime,
		ChainID:  defaultChainID,
		Balances: defaultBalances.Copy(),
	}
}

// LoadGenesis reads the genesis document at path. Balance values are not
// validated.
func LoadGenesis(path string) (*Genesis, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return nil, &ConfigError{Path: path, Err: xerrors.Errorf("parsing genesis: %w", err)}
	}
	if genesis.Balances == nil {
		return nil, &ConfigError{Path: path, Err: xerrors.New("genesis has no balances table")}
	}
	return &genesis, nil
}

// Write stores the genesis document at path, creating parent directories.
func (g *Genesis) Write(path string) error {
	content, err := json.MarshalIndent(g, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(path, content, 0600)
}
