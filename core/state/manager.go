package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

// Manager reads and writes RLP-encoded state records through an ordered
// key-value view. The host hands each unit of work a Manager bound to an open
// storage transaction, so every write made through it commits or rolls back
// together.
type Manager struct {
	kv storage.KV
}

// NewManager creates a state manager operating on the provided key-value view.
func NewManager(kv storage.KV) *Manager {
	return &Manager{kv: kv}
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}

// KVDelete removes the key from state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.kv.Delete(key)
}

// KVIterate decodes every raw value under prefix in ascending key order.
func (m *Manager) KVIterate(prefix []byte, fn func(key, value []byte) error) error {
	var cbErr error
	err := m.kv.Iterate(prefix, func(key, value []byte) bool {
		if err := fn(key, value); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	if cbErr != nil {
		return cbErr
	}
	return err
}

// Uint64 loads a counter stored with KVPut. Missing counters read as zero.
func (m *Manager) Uint64(key []byte) (uint64, error) {
	var value uint64
	if _, err := m.KVGet(key, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// IncrementUint64 adds one to the counter at key and returns the new value.
func (m *Manager) IncrementUint64(key []byte) (uint64, error) {
	current, err := m.Uint64(key)
	if err != nil {
		return 0, err
	}
	if current == ^uint64(0) {
		return 0, fmt.Errorf("kv: counter %q overflow", key)
	}
	next := current + 1
	if err := m.KVPut(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
