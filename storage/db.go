package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// KV is the ordered key-value surface shared by the database and by open
// transactions. Iteration always proceeds in ascending byte order of the key.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix. Returning false
	// from fn stops the iteration early. Key and value slices are copies.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// Txn is a unit of work over the database. Writes become visible to other
// readers only after Commit; Discard drops them.
type Txn interface {
	KV
	Commit() error
	Discard()
}

// Database is a generic interface for an ordered key-value store that can
// open atomic transactions. Both the in-memory and the on-disk variant are
// backed by goleveldb so tests exercise the same code path as production.
type Database interface {
	KV
	Begin() (Txn, error)
	Close() error
}

// LevelDB is a key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB returns a LevelDB instance running on volatile in-memory storage.
// Intended for tests and ephemeral nodes.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	if err != nil {
		// Opening fresh memory storage cannot fail short of a programming error.
		panic(fmt.Sprintf("storage: open memory db: %v", err))
	}
	return &LevelDB{db: db}
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return get(ldb.db, key)
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Delete removes the key. Deleting an absent key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Iterate walks all keys sharing the prefix in ascending order.
func (ldb *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return iterate(ldb.db.NewIterator(util.BytesPrefix(prefix), nil), fn)
}

// Begin opens a transaction. Only one transaction may be open at a time;
// writes to the database block until it is committed or discarded.
func (ldb *LevelDB) Begin() (Txn, error) {
	tr, err := ldb.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("storage: open transaction: %w", err)
	}
	return &levelTxn{tr: tr}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

type levelTxn struct {
	tr *leveldb.Transaction
}

func (t *levelTxn) Get(key []byte) ([]byte, error) { return get(t.tr, key) }

func (t *levelTxn) Has(key []byte) (bool, error) { return t.tr.Has(key, nil) }

func (t *levelTxn) Put(key, value []byte) error { return t.tr.Put(key, value, nil) }

func (t *levelTxn) Delete(key []byte) error { return t.tr.Delete(key, nil) }

func (t *levelTxn) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return iterate(t.tr.NewIterator(util.BytesPrefix(prefix), nil), fn)
}

func (t *levelTxn) Commit() error { return t.tr.Commit() }

func (t *levelTxn) Discard() { t.tr.Discard() }

type getter interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

func get(src getter, key []byte) ([]byte, error) {
	value, err := src.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func iterate(it iterator.Iterator, fn func(key, value []byte) bool) error {
	defer it.Release()
	for it.Next() {
		key := append([]byte(nil), it.Key()...)
		value := append([]byte(nil), it.Value()...)
		if !fn(key, value) {
			break
		}
	}
	return it.Error()
}
