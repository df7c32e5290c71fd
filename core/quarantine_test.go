package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"

	"github.com/vidar-chain/vidar/core/types"
)

// newTestQuarantine wires a quarantine over an in-memory store with a
// simulated clock driving the cache TTL.
func newTestQuarantine(ttl time.Duration) (*Quarantine, *ChainStore, *mclock.Simulated) {
	clk := new(mclock.Simulated)
	store := NewChainStore(gethrawdb.NewMemoryDatabase())
	q := &Quarantine{
		cache:   newRefCache(ttl, clk),
		storage: store,
	}
	return q, store, clk
}

// childOf builds a structurally valid successor of parent.
func childOf(parent *types.Header) *types.Header {
	return &types.Header{
		ParentHash:  parent.Hash(),
		ChainLength: parent.ChainLength + 1,
		Date:        types.BlockDate{Epoch: parent.Date.Epoch, Slot: parent.Date.Slot + 1},
	}
}

// Happy path: the parent sits in the cache, the child is admitted and
// resolvable afterwards.
func TestApplyHeaderQuarantines(t *testing.T) {
	q, _, _ := newTestQuarantine(time.Minute)
	ctx := context.Background()

	parent := &types.Header{ChainLength: 0, Date: types.BlockDate{Slot: 10}}
	q.cache.Add(parent.Hash(), QuarantinedHeader{Header: parent})

	child := &types.Header{
		ParentHash:  parent.Hash(),
		ChainLength: 1,
		Date:        types.BlockDate{Slot: 11},
	}
	triage, err := q.ApplyHeader(ctx, child)
	if err != nil {
		t.Fatalf("admission failed: %v", err)
	}
	if triage.Status != TriageQuarantined {
		t.Fatalf("have status %v, want TriageQuarantined", triage.Status)
	}
	if triage.Hash != child.Hash() {
		t.Fatalf("have hash %x, want %x", triage.Hash, child.Hash())
	}

	got, err := q.GetHeader(ctx, child.Hash())
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got == nil || got.Hash() != child.Hash() {
		t.Fatal("admitted header not resolvable")
	}
}

// A block already in storage is reported present and the cache is left
// alone, whatever its current content.
func TestApplyHeaderAlreadyPresent(t *testing.T) {
	q, store, _ := newTestQuarantine(time.Minute)
	ctx := context.Background()

	block := types.NewBlock(&types.Header{ChainLength: 7, Date: types.BlockDate{Slot: 70}}, nil)
	if err := store.Put(ctx, block); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	before := q.cache.Len()
	triage, err := q.ApplyHeader(ctx, block.Header())
	if err != nil {
		t.Fatalf("triage failed: %v", err)
	}
	if triage.Status != TriageAlreadyPresent {
		t.Fatalf("have status %v, want TriageAlreadyPresent", triage.Status)
	}
	if q.cache.Len() != before {
		t.Fatal("duplicate admission mutated the cache")
	}

	// Idempotent under repetition, and indifferent to cache content.
	q.cache.Add(block.Hash(), QuarantinedHeader{Header: block.Header()})
	if triage, err = q.ApplyHeader(ctx, block.Header()); err != nil || triage.Status != TriageAlreadyPresent {
		t.Fatalf("have (%v, %v), want AlreadyPresent", triage.Status, err)
	}
}

func TestApplyHeaderMissingParent(t *testing.T) {
	q, _, _ := newTestQuarantine(time.Minute)

	header := &types.Header{
		ParentHash:  common.HexToHash("0xdeadbeef"),
		ChainLength: 3,
		Date:        types.BlockDate{Slot: 30},
	}
	_, err := q.ApplyHeader(context.Background(), header)
	if !errors.Is(err, ErrUnknownAncestor) {
		t.Fatalf("have %v, want ErrUnknownAncestor", err)
	}
	var missing *MissingParentError
	if !errors.As(err, &missing) || missing.Header.Hash() != header.Hash() {
		t.Fatalf("rejection does not carry the header: %v", err)
	}
	if q.cache.Len() != 0 {
		t.Fatal("rejected header mutated the cache")
	}
}

func TestApplyHeaderVerification(t *testing.T) {
	parent := &types.Header{ChainLength: 5, Date: types.BlockDate{Epoch: 1, Slot: 100}}

	tests := []struct {
		name    string
		mutate  func(*types.Header)
		wantErr error
	}{
		{
			name:    "chain length not successor",
			mutate:  func(h *types.Header) { h.ChainLength = 5 },
			wantErr: ErrNonSequentialChainLength,
		},
		{
			name:    "chain length skips ahead",
			mutate:  func(h *types.Header) { h.ChainLength = 7 },
			wantErr: ErrNonSequentialChainLength,
		},
		{
			name:    "date equal to parent",
			mutate:  func(h *types.Header) { h.Date = parent.Date },
			wantErr: ErrOlderBlockDate,
		},
		{
			name:    "date before parent",
			mutate:  func(h *types.Header) { h.Date = types.BlockDate{Epoch: 1, Slot: 99} },
			wantErr: ErrOlderBlockDate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _, _ := newTestQuarantine(time.Minute)
			q.cache.Add(parent.Hash(), QuarantinedHeader{Header: parent})

			header := childOf(parent)
			tt.mutate(header)

			_, err := q.ApplyHeader(context.Background(), header)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("have %v, want %v", err, tt.wantErr)
			}
			var invalid *VerificationError
			if !errors.As(err, &invalid) || invalid.Hash != header.Hash() {
				t.Fatalf("rejection does not carry the hash: %v", err)
			}
			if q.cache.Len() != 1 {
				t.Fatal("rejected header mutated the cache")
			}
		})
	}
}

// Every admitted header had a parent with the successor length and an
// earlier date at admission time, across a whole chain.
func TestApplyHeaderLinkageSoundness(t *testing.T) {
	q, _, _ := newTestQuarantine(time.Minute)
	ctx := context.Background()

	head := &types.Header{ChainLength: 0, Date: types.BlockDate{Slot: 1}}
	q.cache.Add(head.Hash(), QuarantinedHeader{Header: head})

	for i := 0; i < 16; i++ {
		next := childOf(head)
		triage, err := q.ApplyHeader(ctx, next)
		if err != nil {
			t.Fatalf("link %d: %v", i, err)
		}
		parent, err := q.GetHeader(ctx, next.ParentHash)
		if err != nil || parent == nil {
			t.Fatalf("link %d: parent unresolvable after admission", i)
		}
		if parent.ChainLength+1 != next.ChainLength || !next.Date.After(parent.Date) {
			t.Fatalf("link %d: admitted header does not progress from its parent", i)
		}
		if triage.Hash != next.Hash() {
			t.Fatalf("link %d: wrong hash in triage", i)
		}
		head = next
	}
}

// Resolution order of GetHeader: cache header, cache block, then storage;
// storage hits do not repopulate the cache.
func TestGetHeaderResolution(t *testing.T) {
	q, store, _ := newTestQuarantine(time.Minute)
	ctx := context.Background()

	cachedHeader := &types.Header{ChainLength: 1, Date: types.BlockDate{Slot: 1}}
	cachedBlock := types.NewBlock(&types.Header{ChainLength: 2, Date: types.BlockDate{Slot: 2}}, nil)
	storedBlock := types.NewBlock(&types.Header{ChainLength: 3, Date: types.BlockDate{Slot: 3}}, nil)

	q.cache.Add(cachedHeader.Hash(), QuarantinedHeader{Header: cachedHeader})
	q.cache.Add(cachedBlock.Hash(), QuarantinedBlock{Block: cachedBlock})
	if err := store.Put(ctx, storedBlock); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	for _, hash := range []common.Hash{cachedHeader.Hash(), cachedBlock.Hash(), storedBlock.Hash()} {
		header, err := q.GetHeader(ctx, hash)
		if err != nil {
			t.Fatalf("lookup %x: %v", hash, err)
		}
		if header == nil || header.Hash() != hash {
			t.Fatalf("lookup %x returned wrong header", hash)
		}
	}
	if header, err := q.GetHeader(ctx, common.HexToHash("0x01")); err != nil || header != nil {
		t.Fatalf("unknown hash resolved to (%v, %v)", header, err)
	}
	// The storage hit must not have populated the cache.
	if _, ok := q.cache.Get(storedBlock.Hash()); ok {
		t.Fatal("storage hit repopulated the cache")
	}
}

// GetBlock yields a block iff storage holds it or the cache stages a full
// block; a staged header is a miss, not an error.
func TestGetBlockStorageAuthority(t *testing.T) {
	q, store, _ := newTestQuarantine(time.Minute)
	ctx := context.Background()

	staged := &types.Header{ChainLength: 1, Date: types.BlockDate{Slot: 1}}
	memBlock := types.NewBlock(&types.Header{ChainLength: 2, Date: types.BlockDate{Slot: 2}}, nil)
	durBlock := types.NewBlock(&types.Header{ChainLength: 3, Date: types.BlockDate{Slot: 3}},
		&types.Body{Fragments: []types.Fragment{[]byte("frag")}})

	q.cache.Add(staged.Hash(), QuarantinedHeader{Header: staged})
	q.cache.Add(memBlock.Hash(), QuarantinedBlock{Block: memBlock})
	if err := store.Put(ctx, durBlock); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	if block, err := q.GetBlock(ctx, staged.Hash()); err != nil || block != nil {
		t.Fatalf("staged header lookup: have (%v, %v), want (nil, nil)", block, err)
	}
	if block, err := q.GetBlock(ctx, memBlock.Hash()); err != nil || block == nil {
		t.Fatalf("staged block lookup failed: (%v, %v)", block, err)
	}
	block, err := q.GetBlock(ctx, durBlock.Hash())
	if err != nil || block == nil {
		t.Fatalf("stored block lookup failed: (%v, %v)", block, err)
	}
	if block.Hash() != durBlock.Hash() || len(block.Body().Fragments) != 1 {
		t.Fatal("stored block came back mangled")
	}
	if block, err := q.GetBlock(ctx, common.HexToHash("0x02")); err != nil || block != nil {
		t.Fatalf("unknown block lookup: have (%v, %v), want (nil, nil)", block, err)
	}
}

type failingStore struct {
	err error
}

func (s failingStore) Has(ctx context.Context, hash common.Hash) (bool, error) {
	return false, s.err
}

func (s failingStore) Get(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return nil, s.err
}

func TestStorageErrorPropagation(t *testing.T) {
	boom := errors.New("disk on fire")
	clk := new(mclock.Simulated)
	q := &Quarantine{
		cache:   newRefCache(time.Minute, clk),
		storage: failingStore{err: boom},
	}
	ctx := context.Background()

	if _, err := q.GetHeader(ctx, common.HexToHash("0x01")); !errors.Is(err, boom) {
		t.Fatalf("GetHeader: have %v, want wrapped %v", err, boom)
	}
	if _, err := q.GetBlock(ctx, common.HexToHash("0x01")); !errors.Is(err, boom) {
		t.Fatalf("GetBlock: have %v, want wrapped %v", err, boom)
	}
	_, err := q.ApplyHeader(ctx, testHeader(1))
	var storage *StorageError
	if !errors.As(err, &storage) || !errors.Is(err, boom) {
		t.Fatalf("ApplyHeader: have %v, want StorageError wrapping %v", err, boom)
	}
	if q.cache.Len() != 0 {
		t.Fatal("storage failure mutated the cache")
	}
}

// Cancellation before the cache mutation leaves the cache unchanged.
func TestApplyHeaderCancellation(t *testing.T) {
	q, _, _ := newTestQuarantine(time.Minute)

	parent := &types.Header{ChainLength: 0, Date: types.BlockDate{Slot: 1}}
	q.cache.Add(parent.Hash(), QuarantinedHeader{Header: parent})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.ApplyHeader(ctx, childOf(parent))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("have %v, want context.Canceled", err)
	}
	if q.cache.Len() != 1 {
		t.Fatal("cancelled admission mutated the cache")
	}
}

// TTL expiry under idle load: admitted, touched once, then idle past the
// TTL; a purge drops it and the empty store makes the lookup a miss.
func TestQuarantineEntryExpiry(t *testing.T) {
	q, _, clk := newTestQuarantine(time.Second)
	ctx := context.Background()

	parent := &types.Header{ChainLength: 0, Date: types.BlockDate{Slot: 1}}
	q.cache.Add(parent.Hash(), QuarantinedHeader{Header: parent})
	child := childOf(parent)
	if _, err := q.ApplyHeader(ctx, child); err != nil {
		t.Fatalf("admission failed: %v", err)
	}

	clk.Run(500 * time.Millisecond)
	if header, err := q.GetHeader(ctx, child.Hash()); err != nil || header == nil {
		t.Fatalf("header gone before TTL: (%v, %v)", header, err)
	}

	clk.Run(2 * time.Second)
	if err := q.cache.Purge(); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if header, err := q.GetHeader(ctx, child.Hash()); err != nil || header != nil {
		t.Fatalf("expired header still resolvable: (%v, %v)", header, err)
	}
}
