package utils

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	bc "tbb/blockchain"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

const (
	genesisFile = "genesis.json"
	blocksFile  = "block.db"
	indexFile   = "index.db"
)

func GenesisFilePath(dataDir string) string {
	return filepath.Join(dataDir, genesisFile)
}

func BlocksFilePath(dataDir string) string {
	return filepath.Join(dataDir, blocksFile)
}

// IndexFilePath is the bbolt block index. It only holds derived data and
// may be removed while no process uses the directory.
func IndexFilePath(dataDir string) string {
	return filepath.Join(dataDir, indexFile)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// InitDataDirIfNotExists writes the default genesis file and an empty
// ledger log into dataDir when no genesis file is present yet. A ledger log
// holding blocks without its genesis is a ConfigError.
func InitDataDirIfNotExists(dataDir string) error {
	if FileExists(GenesisFilePath(dataDir)) {
		return nil
	}
	if content, err := ioutil.ReadFile(BlocksFilePath(dataDir)); err == nil && len(bytes.TrimSpace(content)) > 0 {
		return &bc.ConfigError{
			Path: GenesisFilePath(dataDir),
			Err:  xerrors.Errorf("missing, but %s already holds blocks", BlocksFilePath(dataDir)),
		}
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return xerrors.Errorf("creating %s: %w", dataDir, err)
	}
	if err := bc.DefaultGenesis().Write(GenesisFilePath(dataDir)); err != nil {
		return err
	}
	if !FileExists(BlocksFilePath(dataDir)) {
		if err := ioutil.WriteFile(BlocksFilePath(dataDir), nil, 0600); err != nil {
			return xerrors.Errorf("creating ledger log: %w", err)
		}
	}
	log.Info("Initialized data directory", dataDir)
	return nil
}
