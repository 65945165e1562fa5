package service

import (
	bc "tbb/blockchain"
	"tbb/storage"
	"tbb/utils"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// State holds the balances derived from the ledger log, the pending pool
// and the head of the chain. It is the only writer of its log and is not
// safe for concurrent use; hosts serialize calls.
type State struct {
	balances Balances
	pending  txPool
	// pendingBalances is balances with every pending tx applied.
	pendingBalances Balances

	latestBlock *bc.Block
	latestHash  bc.Hash
	hasGenesis  bool

	chainID string
	log     BlockLog
	db      *storage.BlockDB
	clock   Clock
}

// Balances is re-exported for callers that only import service.
type Balances = bc.Balances

// NewState returns a state seeded with genesis and no committed blocks.
// The log is not read; use Rebuild to replay it.
func NewState(genesis Balances, blockLog BlockLog, opts ...Option) *State {
	s := &State{
		balances: genesis.Copy(),
		log:      blockLog,
		clock:    SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pendingBalances = s.balances.Copy()
	return s
}

// Rebuild seeds balances from genesis and replays every record of the log.
// Blocks are trusted as ordered in the log; their headers are not
// re-validated.
func Rebuild(genesis Balances, blockLog BlockLog, opts ...Option) (*State, error) {
	s := NewState(genesis, blockLog, opts...)
	if err := s.replay(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStateFromDisk bootstraps dataDir if needed, then rebuilds the state
// from its genesis file and ledger log.
func NewStateFromDisk(dataDir string, opts ...Option) (*State, error) {
	if err := utils.InitDataDirIfNotExists(dataDir); err != nil {
		return nil, xerrors.Errorf("initializing data directory: %w", err)
	}
	genesis, err := bc.LoadGenesis(utils.GenesisFilePath(dataDir))
	if err != nil {
		return nil, err
	}
	db, err := storage.OpenBlockDB(utils.IndexFilePath(dataDir))
	if err != nil {
		return nil, err
	}
	blockLog, err := storage.OpenLog(utils.BlocksFilePath(dataDir))
	if err != nil {
		db.Close()
		return nil, err
	}
	s, err := Rebuild(genesis.Balances, blockLog, append([]Option{WithBlockDB(db)}, opts...)...)
	if err != nil {
		blockLog.Close()
		db.Close()
		return nil, err
	}
	s.chainID = genesis.ChainID
	return s, nil
}

func (s *State) replay() error {
	scanner := s.log.Scan()
	defer scanner.Close()

	var missing []*bc.Record
	for scanner.Next() {
		record := scanner.Record()
		if err := bc.ApplyTxs(s.balances, record.Value.Payload); err != nil {
			return &bc.CorruptLogError{Line: scanner.Line(), Err: err}
		}
		s.latestBlock = record.Value.Copy()
		s.latestHash = record.Key
		s.hasGenesis = true
		log.Lvlf3("Replayed block %d / %s", record.Value.Header.Number, record.Key)

		if s.db != nil {
			indexed, err := s.db.Indexed(record.Value.Header.Number, record.Key)
			if err != nil {
				log.Warn("Couldn't read block index:", err)
			} else if !indexed {
				missing = append(missing, record)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.pendingBalances = s.balances.Copy()
	s.syncIndex(missing)
	return nil
}

// syncIndex stores records the index lacks and drops blocks past the head.
// The index is derived data, so failures only degrade lookups.
func (s *State) syncIndex(missing []*bc.Record) {
	if s.db == nil {
		return
	}
	if err := s.db.StoreRecords(missing); err != nil {
		log.Warn("Couldn't update block index:", err)
		return
	}
	if err := s.db.Prune(s.NextBlockNumber()); err != nil {
		log.Warn("Couldn't prune block index:", err)
	}
}

func (s *State) ChainID() string {
	return s.chainID
}

// Balances returns a copy of the committed balances.
func (s *State) Balances() Balances {
	return s.balances.Copy()
}

// Balance returns the committed balance of account.
func (s *State) Balance(account bc.Account) uint64 {
	return s.balances[account]
}

// PendingBalances returns the balances as they will be once every pending
// tx is persisted.
func (s *State) PendingBalances() Balances {
	return s.pendingBalances.Copy()
}

func (s *State) PendingTxs() []bc.Tx {
	return s.pending.list()
}

// LatestBlock returns a copy of the head block, nil before the first block.
func (s *State) LatestBlock() *bc.Block {
	return s.latestBlock.Copy()
}

// LatestBlockHash is zero until the first block is committed.
func (s *State) LatestBlockHash() bc.Hash {
	return s.latestHash
}

func (s *State) HasGenesisBlock() bool {
	return s.hasGenesis
}

// NextBlockNumber is the number the next block must carry.
func (s *State) NextBlockNumber() uint64 {
	if !s.hasGenesis {
		return 0
	}
	return s.latestBlock.Header.Number + 1
}

// AddTx validates tx against the pending view and queues it. A rejected tx
// changes nothing.
func (s *State) AddTx(tx bc.Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := bc.ApplyTx(s.pendingBalances, tx); err != nil {
		return err
	}
	s.pending.add(tx)
	log.Lvl2("Added tx", tx)
	return nil
}

// ApplyBlock checks that block extends the head, by number and by parent
// hash, and applies its transactions all or nothing.
func (s *State) ApplyBlock(block *bc.Block) error {
	next := s.NextBlockNumber()
	if block.Header.Number != next {
		return &bc.SequenceMismatchError{Expected: next, Got: block.Header.Number}
	}
	if s.hasGenesis && block.Header.Parent != s.latestHash {
		return &bc.ParentMismatchError{Expected: s.latestHash, Got: block.Header.Parent}
	}
	hash, err := block.Hash()
	if err != nil {
		return err
	}
	balances := s.balances.Copy()
	if err := bc.ApplyTxs(balances, block.Payload); err != nil {
		return err
	}
	s.balances = balances
	s.latestBlock = block.Copy()
	s.latestHash = hash
	s.hasGenesis = true
	s.refreshPending()
	return nil
}

// Persist turns the pending pool into the next block and appends it to the
// log. On failure the pool is kept and nothing is written. Durability is
// left to Sync and Close.
func (s *State) Persist() (bc.Hash, error) {
	if s.pending.len() == 0 {
		return bc.Hash{}, bc.ErrEmptyPool
	}
	block := bc.NewBlock(s.latestHash, s.NextBlockNumber(), uint64(s.clock.Now().Unix()), s.pending.list())
	scratch := s.copy()
	if err := scratch.ApplyBlock(block); err != nil {
		return bc.Hash{}, err
	}
	if err := s.write(scratch); err != nil {
		return bc.Hash{}, err
	}
	s.pending.reset(nil)
	s.adopt(scratch)
	log.Infof("Persisted block %d / %s", block.Header.Number, s.latestHash)
	return s.latestHash, nil
}

// AddBlock validates a block built elsewhere against the head and appends
// it. Pending txs that no longer apply on top of it are dropped.
func (s *State) AddBlock(block *bc.Block) (bc.Hash, error) {
	scratch := s.copy()
	if err := scratch.ApplyBlock(block); err != nil {
		return bc.Hash{}, err
	}
	if err := s.write(scratch); err != nil {
		return bc.Hash{}, err
	}
	s.adopt(scratch)
	log.Lvlf2("Added block %d / %s", block.Header.Number, s.latestHash)
	return s.latestHash, nil
}

// AddBlocks adds blocks in order and stops at the first failure.
func (s *State) AddBlocks(blocks []*bc.Block) error {
	for i, block := range blocks {
		if _, err := s.AddBlock(block); err != nil {
			return xerrors.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

// GetBlockByNumber looks the block up in the index, or scans the log when
// no index is attached.
func (s *State) GetBlockByNumber(number uint64) (*bc.Record, error) {
	if s.db != nil {
		return s.db.GetByNumber(number)
	}
	return s.findRecord(func(r *bc.Record) bool { return r.Value.Header.Number == number })
}

func (s *State) GetBlockByHash(hash bc.Hash) (*bc.Record, error) {
	if s.db != nil {
		return s.db.GetByID(hash)
	}
	return s.findRecord(func(r *bc.Record) bool { return r.Key == hash })
}

func (s *State) findRecord(match func(*bc.Record) bool) (*bc.Record, error) {
	scanner := s.log.Scan()
	defer scanner.Close()
	for scanner.Next() {
		if match(scanner.Record()) {
			return scanner.Record(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, bc.ErrBlockNotFound
}

// Sync flushes the ledger log.
func (s *State) Sync() error {
	return s.log.Sync()
}

// Close syncs and closes the log and the index.
func (s *State) Close() error {
	err := s.log.Sync()
	if cerr := s.log.Close(); err == nil {
		err = cerr
	}
	if s.db != nil {
		if cerr := s.db.Close(); err == nil && cerr != nil {
			err = xerrors.Errorf("closing block index: %w", cerr)
		}
	}
	return err
}

// copy returns a scratch state sharing nothing mutable with s. It has no
// log and an empty pool.
func (s *State) copy() *State {
	balances := s.balances.Copy()
	return &State{
		balances:        balances,
		pendingBalances: balances.Copy(),
		latestBlock:     s.latestBlock.Copy(),
		latestHash:      s.latestHash,
		hasGenesis:      s.hasGenesis,
		clock:           s.clock,
	}
}

// write appends the head of scratch to the log and the index.
func (s *State) write(scratch *State) error {
	record := &bc.Record{Key: scratch.latestHash, Value: *scratch.latestBlock.Copy()}
	if err := s.log.Append(record); err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.Store(record); err != nil {
			log.Warn("Couldn't index block, it will be indexed on next rebuild:", err)
		}
	}
	return nil
}

// adopt makes the committed part of scratch the committed state of s.
func (s *State) adopt(scratch *State) {
	s.balances = scratch.balances
	s.latestBlock = scratch.latestBlock
	s.latestHash = scratch.latestHash
	s.hasGenesis = scratch.hasGenesis
	s.refreshPending()
}

// refreshPending replays the pool on top of the committed balances,
// dropping txs that no longer apply.
func (s *State) refreshPending() {
	view := s.balances.Copy()
	var kept []bc.Tx
	for _, tx := range s.pending.list() {
		if err := bc.ApplyTx(view, tx); err != nil {
			log.Warnf("Dropping pending tx %s: %v", tx, err)
			continue
		}
		kept = append(kept, tx)
	}
	s.pending.reset(kept)
	s.pendingBalances = view
}
