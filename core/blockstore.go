package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vidar-chain/vidar/core/rawdb"
	"github.com/vidar-chain/vidar/core/types"
)

// BlockStore is the durable home of committed blocks, keyed by header
// hash. Writes are idempotent. The quarantine treats the store as
// authoritative for block existence; the reference cache never is.
type BlockStore interface {
	// Has reports whether a block with the given header hash is committed.
	Has(ctx context.Context, hash common.Hash) (bool, error)

	// Get returns the committed block with the given header hash, or nil
	// if no such block is stored.
	Get(ctx context.Context, hash common.Hash) (*types.Block, error)
}

// ChainStore implements BlockStore over an ethdb key-value store using the
// rawdb schema. The zero-cost handle can be copied freely; all state lives
// in the underlying database.
type ChainStore struct {
	db ethdb.KeyValueStore
}

func NewChainStore(db ethdb.KeyValueStore) *ChainStore {
	return &ChainStore{db: db}
}

func (s *ChainStore) Has(ctx context.Context, hash common.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.db.Has(rawdb.BlockKey(hash))
}

func (s *ChainStore) Get(ctx context.Context, hash common.Hash) (*types.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ok, err := s.db.Has(rawdb.BlockKey(hash))
	if err != nil || !ok {
		return nil, err
	}
	data, err := s.db.Get(rawdb.BlockKey(hash))
	if err != nil {
		return nil, err
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(data, block); err != nil {
		return nil, err
	}
	return block, nil
}

// Put commits a block. It serves the promotion path, where a quarantined
// header's body has arrived and the block becomes durable.
func (s *ChainStore) Put(ctx context.Context, block *types.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		return err
	}
	return s.db.Put(rawdb.BlockKey(block.Hash()), data)
}
