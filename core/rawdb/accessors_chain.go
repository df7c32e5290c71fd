package rawdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vidar-chain/vidar/core/types"
)

// HasBlock verifies the existence of a block corresponding to the hash.
func HasBlock(db ethdb.Reader, hash common.Hash) bool {
	if has, err := db.Has(BlockKey(hash)); !has || err != nil {
		return false
	}
	return true
}

// ReadBlockRLP retrieves the block corresponding to the hash in RLP encoding.
func ReadBlockRLP(db ethdb.Reader, hash common.Hash) rlp.RawValue {
	data, _ := db.Get(BlockKey(hash))
	return data
}

// ReadBlock retrieves the block corresponding to the hash.
func ReadBlock(db ethdb.Reader, hash common.Hash) *types.Block {
	data := ReadBlockRLP(db, hash)
	if len(data) == 0 {
		return nil
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(data, block); err != nil {
		log.Error("Invalid block RLP", "hash", hash, "err", err)
		return nil
	}
	return block
}

// ReadHeader retrieves the header of the block corresponding to the hash.
func ReadHeader(db ethdb.Reader, hash common.Hash) *types.Header {
	block := ReadBlock(db, hash)
	if block == nil {
		return nil
	}
	return block.Header()
}

// WriteBlock stores a block into the database, keyed by its header hash.
// The write is idempotent: re-storing an already committed block simply
// overwrites it with the same bytes.
func WriteBlock(db ethdb.KeyValueWriter, block *types.Block) {
	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		log.Crit("Failed to RLP encode block", "err", err)
	}
	if err := db.Put(BlockKey(block.Hash()), data); err != nil {
		log.Crit("Failed to store block", "err", err)
	}
}

// DeleteBlock removes the block corresponding to the hash.
func DeleteBlock(db ethdb.KeyValueWriter, hash common.Hash) {
	if err := db.Delete(BlockKey(hash)); err != nil {
		log.Crit("Failed to delete block", "err", err)
	}
}

// ReadHeadBlockHash retrieves the hash of the current canonical head block.
func ReadHeadBlockHash(db ethdb.KeyValueReader) common.Hash {
	data, _ := db.Get(headBlockKey)
	if len(data) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(data)
}

// WriteHeadBlockHash stores the head block's hash.
func WriteHeadBlockHash(db ethdb.KeyValueWriter, hash common.Hash) {
	if err := db.Put(headBlockKey, hash.Bytes()); err != nil {
		log.Crit("Failed to store last block's hash", "err", err)
	}
}
