package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("key"), []byte("value")))
	require.NoError(t, db1.Close())

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("absent"))
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := db.Has([]byte("absent"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterateIsOrderedAndPrefixScoped(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	for _, k := range []string{"a/3", "a/1", "b/1", "a/2"} {
		require.NoError(t, db.Put([]byte(k), []byte(k)))
	}

	var seen []string
	require.NoError(t, db.Iterate([]byte("a/"), func(key, value []byte) bool {
		seen = append(seen, string(key))
		return true
	}))
	require.Equal(t, []string{"a/1", "a/2", "a/3"}, seen)

	seen = seen[:0]
	require.NoError(t, db.Iterate([]byte("a/"), func(key, value []byte) bool {
		seen = append(seen, string(key))
		return len(seen) < 2
	}))
	require.Equal(t, []string{"a/1", "a/2"}, seen)
}

func TestTxnCommitAndDiscard(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	require.NoError(t, db.Put([]byte("keep"), []byte("v0")))

	txn, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("new"), []byte("v1")))
	require.NoError(t, txn.Delete([]byte("keep")))

	// The transaction observes its own writes.
	got, err := txn.Get([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
	_, err = txn.Get([]byte("keep"))
	require.ErrorIs(t, err, ErrNotFound)
	txn.Discard()

	got, err = db.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("v0"), got)
	_, err = db.Get([]byte("new"))
	require.ErrorIs(t, err, ErrNotFound)

	txn, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.Put([]byte("new"), []byte("v2")))
	require.NoError(t, txn.Commit())

	got, err = db.Get([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}
