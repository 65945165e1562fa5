package storage

import (
	"encoding/binary"
	"time"

	bc "tbb/blockchain"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	blocksBucket  = []byte("blocks")
	numbersBucket = []byte("numbers")
)

// lockTimeout bounds how long OpenBlockDB waits for another process to
// release the data directory.
const lockTimeout = time.Second

// BlockDB indexes committed blocks by hash and by number. It is derived
// from the ledger log and can be rebuilt from it at any time.
type BlockDB struct {
	*bbolt.DB
}

type storedTx struct {
	From  string
	To    string
	Value uint64
	Data  string
}

type storedBlock struct {
	Key    []byte
	Parent []byte
	Number uint64
	Time   uint64
	Txs    []*storedTx
}

// OpenBlockDB opens the index at path. bbolt holds an exclusive lock on the
// file, so a second process on the same data directory fails here.
func OpenBlockDB(path string) (*BlockDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		if xerrors.Is(err, bbolt.ErrTimeout) {
			return nil, xerrors.Errorf("%s is locked by another process: %w", path, err)
		}
		return nil, xerrors.Errorf("opening block index %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{blocksBucket, numbersBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("creating buckets: %w", err)
	}
	return &BlockDB{DB: db}, nil
}

func numberKey(number uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, number)
	return key
}

func encodeRecord(record *bc.Record) ([]byte, error) {
	sb := &storedBlock{
		Key:    record.Key[:],
		Parent: record.Value.Header.Parent[:],
		Number: record.Value.Header.Number,
		Time:   record.Value.Header.Time,
	}
	for _, tx := range record.Value.Payload {
		sb.Txs = append(sb.Txs, &storedTx{
			From:  string(tx.From),
			To:    string(tx.To),
			Value: tx.Value,
			Data:  tx.Data,
		})
	}
	return protobuf.Encode(sb)
}

func decodeRecord(val []byte) (*bc.Record, error) {
	// bbolt values are only valid inside the transaction.
	buf := make([]byte, len(val))
	copy(buf, val)
	sb := &storedBlock{}
	if err := protobuf.Decode(buf, sb); err != nil {
		return nil, err
	}
	if len(sb.Key) != bc.HashSize || len(sb.Parent) != bc.HashSize {
		return nil, xerrors.New("stored block has malformed hashes")
	}
	txs := make([]bc.Tx, 0, len(sb.Txs))
	for _, tx := range sb.Txs {
		txs = append(txs, bc.NewTx(bc.Account(tx.From), bc.Account(tx.To), tx.Value, tx.Data))
	}
	var key, parent bc.Hash
	copy(key[:], sb.Key)
	copy(parent[:], sb.Parent)
	return &bc.Record{
		Key:   key,
		Value: *bc.NewBlock(parent, sb.Number, sb.Time, txs),
	}, nil
}

// storeToTx stores the record into the database, replacing whatever block
// previously held its number.
func (db *BlockDB) storeToTx(tx *bbolt.Tx, record *bc.Record) error {
	val, err := encodeRecord(record)
	if err != nil {
		return err
	}
	numbers := tx.Bucket(numbersBucket)
	blocks := tx.Bucket(blocksBucket)
	nk := numberKey(record.Value.Header.Number)
	if old := numbers.Get(nk); old != nil && string(old) != string(record.Key[:]) {
		if err := blocks.Delete(old); err != nil {
			return err
		}
	}
	if err := blocks.Put(record.Key[:], val); err != nil {
		return err
	}
	return numbers.Put(nk, record.Key[:])
}

// getFromTx returns the block identified by hash, or nil if it does not exist.
func (db *BlockDB) getFromTx(tx *bbolt.Tx, hash bc.Hash) (*bc.Record, error) {
	val := tx.Bucket(blocksBucket).Get(hash[:])
	if val == nil {
		return nil, nil
	}
	return decodeRecord(val)
}

// StoreRecords stores the records in a single bbolt transaction.
func (db *BlockDB) StoreRecords(records []*bc.Record) error {
	if len(records) == 0 {
		return nil
	}
	return db.Update(func(tx *bbolt.Tx) error {
		for _, record := range records {
			log.Lvlf3("Indexing block %d / %s", record.Value.Header.Number, record.Key)
			if err := db.storeToTx(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

// Store stores one record.
func (db *BlockDB) Store(record *bc.Record) error {
	return db.StoreRecords([]*bc.Record{record})
}

// Indexed reports whether number maps to hash.
func (db *BlockDB) Indexed(number uint64, hash bc.Hash) (bool, error) {
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(numbersBucket).Get(numberKey(number))
		found = val != nil && string(val) == string(hash[:])
		return nil
	})
	return found, err
}

// GetByID returns the record with the given hash.
func (db *BlockDB) GetByID(hash bc.Hash) (*bc.Record, error) {
	var result *bc.Record
	err := db.View(func(tx *bbolt.Tx) error {
		record, err := db.getFromTx(tx, hash)
		result = record
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, bc.ErrBlockNotFound
	}
	return result, nil
}

// GetByNumber returns the record at the given height.
func (db *BlockDB) GetByNumber(number uint64) (*bc.Record, error) {
	var result *bc.Record
	err := db.View(func(tx *bbolt.Tx) error {
		hash := tx.Bucket(numbersBucket).Get(numberKey(number))
		if hash == nil {
			return nil
		}
		var id bc.Hash
		copy(id[:], hash)
		record, err := db.getFromTx(tx, id)
		result = record
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, bc.ErrBlockNotFound
	}
	return result, nil
}

// Prune removes every block numbered next or higher. It keeps the index in
// line with a log that holds fewer blocks than were indexed.
func (db *BlockDB) Prune(next uint64) error {
	return db.Update(func(tx *bbolt.Tx) error {
		numbers := tx.Bucket(numbersBucket)
		blocks := tx.Bucket(blocksBucket)
		var stale [][]byte
		c := numbers.Cursor()
		for k, v := c.Seek(numberKey(next)); k != nil; k, v = c.Next() {
			stale = append(stale, append([]byte{}, k...))
			if err := blocks.Delete(v); err != nil {
				return err
			}
		}
		for _, k := range stale {
			if err := numbers.Delete(k); err != nil {
				return err
			}
		}
		if len(stale) > 0 {
			log.Lvlf2("Pruned %d stale blocks from the index", len(stale))
		}
		return nil
	})
}
