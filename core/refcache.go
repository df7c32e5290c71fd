package core

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/common/prque"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	refCacheSizeGauge     = metrics.NewRegisteredGauge("quarantine/refcache/size", nil)
	refCacheHitMeter      = metrics.NewRegisteredMeter("quarantine/refcache/hit", nil)
	refCacheMissMeter     = metrics.NewRegisteredMeter("quarantine/refcache/miss", nil)
	refCacheEvictionMeter = metrics.NewRegisteredMeter("quarantine/refcache/evictions", nil)
)

// RefCache holds recently touched chain references keyed by header hash.
// Every access to an entry resets its TTL. An entry whose TTL has elapsed
// is only dropped once Purge has run to completion, so a reference
// obtained just before its deadline stays valid in the caller's hands.
//
// A single mutex guards the entry map and the expiration queue together;
// it is never held across I/O.
type RefCache struct {
	mu      sync.Mutex
	entries map[common.Hash]*cacheEntry
	expiry  *prque.Prque[int64, common.Hash]
	ttl     time.Duration
	clock   mclock.Clock

	wakeup chan struct{} // signaled when an insert establishes an earlier deadline
}

type cacheEntry struct {
	value    Quarantined
	deadline mclock.AbsTime
	index    int // position in the expiration queue
}

// NewRefCache creates an empty cache whose entries live for ttl after
// their last access.
func NewRefCache(ttl time.Duration) *RefCache {
	return newRefCache(ttl, mclock.System{})
}

func newRefCache(ttl time.Duration, clock mclock.Clock) *RefCache {
	c := &RefCache{
		entries: make(map[common.Hash]*cacheEntry),
		ttl:     ttl,
		clock:   clock,
		wakeup:  make(chan struct{}, 1),
	}
	c.expiry = prque.New[int64, common.Hash](c.setIndex)
	return c
}

// setIndex tracks each key's slot in the expiration queue so a later reset
// or removal can relocate it. Only invoked by queue operations, which all
// run with the cache mutex held.
func (c *RefCache) setIndex(hash common.Hash, index int) {
	if entry := c.entries[hash]; entry != nil {
		entry.index = index
	}
}

// Add places value under key with a fresh TTL. If the key is already
// present, the previous value and its expiration are replaced in the same
// critical section.
func (c *RefCache) Add(key common.Hash, value Quarantined) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old := c.entries[key]; old != nil {
		c.expiry.Remove(old.index)
	}
	prev, havePrev := c.nextDeadlineLocked()

	deadline := c.clock.Now().Add(c.ttl)
	c.entries[key] = &cacheEntry{value: value, deadline: deadline, index: -1}
	c.expiry.Push(key, -int64(deadline))
	refCacheSizeGauge.Update(int64(len(c.entries)))

	if !havePrev || deadline < prev {
		select {
		case c.wakeup <- struct{}{}:
		default:
		}
	}
}

// Get returns the value under key, resetting its TTL. A miss only means
// the reference has not been seen recently; the block may well be in
// durable storage.
func (c *RefCache) Get(key common.Hash) (Quarantined, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[key]
	if entry == nil {
		refCacheMissMeter.Mark(1)
		return nil, false
	}
	// Relocate the expiration handle to now+ttl. Values are immutable once
	// inserted, so handing out the stored value is the logical copy: it
	// stays valid even if the entry expires right after this returns.
	c.expiry.Remove(entry.index)
	entry.deadline = c.clock.Now().Add(c.ttl)
	c.expiry.Push(key, -int64(entry.deadline))
	refCacheHitMeter.Mark(1)
	return entry.value, true
}

// Remove drops the entry under key, along with its expiration handle.
// No-op if the key is absent.
func (c *RefCache) Remove(key common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry := c.entries[key]; entry != nil {
		c.expiry.Remove(entry.index)
		delete(c.entries, key)
		refCacheSizeGauge.Update(int64(len(c.entries)))
	}
}

// Purge drops every entry whose deadline has elapsed, in deadline order.
// Safe to call repeatedly and concurrently with reads and writes. The
// error return is reserved for timer failures and is treated as transient
// by the purge driver; the current realization cannot fail.
func (c *RefCache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for !c.expiry.Empty() {
		if _, prio := c.expiry.Peek(); mclock.AbsTime(-prio) > now {
			break
		}
		key, _ := c.expiry.Pop()
		delete(c.entries, key)
		refCacheEvictionMeter.Mark(1)
	}
	refCacheSizeGauge.Update(int64(len(c.entries)))
	return nil
}

// Len returns the number of live entries.
func (c *RefCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// nextDeadline returns the earliest expiration deadline, if any entry is
// scheduled.
func (c *RefCache) nextDeadline() (mclock.AbsTime, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextDeadlineLocked()
}

func (c *RefCache) nextDeadlineLocked() (mclock.AbsTime, bool) {
	if c.expiry.Empty() {
		return 0, false
	}
	_, prio := c.expiry.Peek()
	return mclock.AbsTime(-prio), true
}
