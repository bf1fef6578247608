package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"

	"nftmarket/native/marketplace"
)

// ComputeInstructionRoot builds the canonical trie over the outbound
// instructions of a receipt and returns its root hash. Instructions are stored
// RLP encoded and keyed by their index in RLP form, mirroring Ethereum's
// transaction trie. An empty list yields the empty root.
func ComputeInstructionRoot(instructions []marketplace.Instruction) (common.Hash, error) {
	if len(instructions) == 0 {
		return gethtypes.EmptyRootHash, nil
	}
	backend := memorydb.New()
	db := rawdb.NewDatabase(backend)
	trieDB := triedb.NewDatabase(db, triedb.HashDefaults)
	trie, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	for i := range instructions {
		key := rlp.AppendUint64(nil, uint64(i))
		payload, err := rlp.EncodeToBytes(&instructions[i])
		if err != nil {
			return common.Hash{}, err
		}
		if err := trie.Update(key, payload); err != nil {
			return common.Hash{}, err
		}
	}
	return trie.Hash(), nil
}
