package core

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/vidar-chain/vidar/consensus"
	"github.com/vidar-chain/vidar/core/types"
)

var (
	triageKnownMeter       = metrics.NewRegisteredMeter("quarantine/triage/known", nil)
	triageQuarantinedMeter = metrics.NewRegisteredMeter("quarantine/triage/quarantined", nil)
	triageRejectedMeter    = metrics.NewRegisteredMeter("quarantine/triage/rejected", nil)

	blockLookupHeaderHitMeter = metrics.NewRegisteredMeter("quarantine/refcache/headerhit", nil)
)

// Quarantined is an entry staged in the reference cache: either a bare
// header whose body has not arrived yet, or a full in-memory block. The
// two cases stay distinct; a staged header must never pass for an
// available block.
type Quarantined interface {
	quarantined()
}

// QuarantinedHeader stages a header whose parent is known but whose block
// body is not yet committed.
type QuarantinedHeader struct {
	Header *types.Header
}

// QuarantinedBlock stages a full block that is held in memory but not yet
// committed to storage.
type QuarantinedBlock struct {
	Block *types.Block
}

func (QuarantinedHeader) quarantined() {}
func (QuarantinedBlock) quarantined()  {}

// TriageStatus classifies the outcome of applying an observed header.
type TriageStatus byte

const (
	// TriageAlreadyPresent means storage already holds the block; nothing
	// was cached.
	TriageAlreadyPresent TriageStatus = iota

	// TriageQuarantined means the header passed admission and now sits in
	// the reference cache awaiting its body.
	TriageQuarantined
)

// Triage is the result of ApplyHeader.
type Triage struct {
	Status TriageStatus
	Hash   common.Hash
}

// Quarantine is the staging area for headers observed from the network.
// It admits headers whose ancestry checks out against the reference cache
// and the durable store, serves header and block lookups cache-first, and
// leaves durability entirely to the store.
type Quarantine struct {
	cache   *RefCache
	storage BlockStore
	engine  consensus.Engine
}

// NewQuarantine builds a quarantine with a fresh, empty reference cache.
// The engine verifies header signatures ahead of admission; it may be nil
// while no engine is wired in, which skips the check.
func NewQuarantine(storage BlockStore, engine consensus.Engine, refCacheTTL time.Duration) *Quarantine {
	return &Quarantine{
		cache:   NewRefCache(refCacheTTL),
		storage: storage,
		engine:  engine,
	}
}

// GetHeader returns the header with the given hash, or nil if it is
// neither cached nor stored. A cache hit refreshes the entry's TTL; a
// storage hit does not repopulate the cache.
func (q *Quarantine) GetHeader(ctx context.Context, hash common.Hash) (*types.Header, error) {
	if entry, ok := q.cache.Get(hash); ok {
		switch entry := entry.(type) {
		case QuarantinedHeader:
			return entry.Header, nil
		case QuarantinedBlock:
			return entry.Block.Header(), nil
		}
	}
	block, err := q.storage.Get(ctx, hash)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	if block == nil {
		return nil, nil
	}
	return block.Header(), nil
}

// GetBlock returns the full block with the given hash, or nil if no body
// is available. A quarantined header counts as "no body": only storage and
// staged full blocks can satisfy this lookup.
func (q *Quarantine) GetBlock(ctx context.Context, hash common.Hash) (*types.Block, error) {
	if entry, ok := q.cache.Get(hash); ok {
		switch entry := entry.(type) {
		case QuarantinedHeader:
			// Upstream callers expect a plain miss here rather than an
			// error. Counted and logged so the case can be audited.
			blockLookupHeaderHitMeter.Mark(1)
			log.Debug("Block lookup hit quarantined header", "hash", hash)
			return nil, nil
		case QuarantinedBlock:
			return entry.Block, nil
		}
	}
	block, err := q.storage.Get(ctx, hash)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return block, nil
}

// ApplyHeader triages an observed header. A header whose block is already
// durable is reported as present; a header whose parent is known and whose
// date and chain length strictly progress from it is admitted into the
// cache; anything else is rejected.
//
// The existence check and the cache insert are not one atomic step. A
// concurrent writer may commit the block in between, briefly leaving the
// cache shadowing a durable block; the entry then ages out or gets
// overwritten on the next observation. Storage stays authoritative for
// existence throughout.
func (q *Quarantine) ApplyHeader(ctx context.Context, header *types.Header) (Triage, error) {
	blockID := header.Hash()

	// Signature slot: the header signing data should be checked against
	// the leader's public key before anything else is paid for. No engine
	// is wired in yet; a nil engine leaves the slot open.
	if q.engine != nil {
		if err := q.engine.VerifyHeaderSignature(header); err != nil {
			triageRejectedMeter.Mark(1)
			return Triage{}, &VerificationError{Hash: blockID, Err: ErrInvalidSignature}
		}
	}

	exists, err := q.storage.Has(ctx, blockID)
	if err != nil {
		return Triage{}, &StorageError{Err: err}
	}
	if exists {
		triageKnownMeter.Mark(1)
		return Triage{Status: TriageAlreadyPresent, Hash: blockID}, nil
	}

	parent, err := q.GetHeader(ctx, header.ParentHash)
	if err != nil {
		return Triage{}, err
	}
	if parent == nil {
		triageRejectedMeter.Mark(1)
		return Triage{}, &MissingParentError{Header: header}
	}
	if !header.Date.After(parent.Date) {
		triageRejectedMeter.Mark(1)
		return Triage{}, &VerificationError{Hash: blockID, Err: ErrOlderBlockDate}
	}
	if header.ChainLength != parent.ChainLength+1 {
		triageRejectedMeter.Mark(1)
		return Triage{}, &VerificationError{Hash: blockID, Err: ErrNonSequentialChainLength}
	}

	// Cancellation unwinds cleanly up to this point. Once the insert below
	// runs, the admission stands.
	if err := ctx.Err(); err != nil {
		return Triage{}, err
	}
	q.cache.Add(blockID, QuarantinedHeader{Header: types.CopyHeader(header)})
	triageQuarantinedMeter.Mark(1)
	return Triage{Status: TriageQuarantined, Hash: blockID}, nil
}
