package core

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var purgeTimer = metrics.NewRegisteredTimer("quarantine/purge", nil)

// PurgeDriver owns reference cache expiration. It is the only caller of
// Purge, which keeps eviction monotone and deterministic to test: an entry
// disappears exactly when its TTL has elapsed and a driver pass has run.
type PurgeDriver struct {
	cache *RefCache
	clock mclock.Clock

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewPurgeDriver builds the expiration driver for a quarantine's cache.
// The driver does nothing until Start.
func NewPurgeDriver(q *Quarantine) *PurgeDriver {
	return newPurgeDriver(q.cache)
}

func newPurgeDriver(cache *RefCache) *PurgeDriver {
	return &PurgeDriver{
		cache: cache,
		clock: cache.clock,
		quit:  make(chan struct{}),
	}
}

// Start launches the background purge loop.
func (d *PurgeDriver) Start() {
	d.wg.Add(1)
	go d.loop()
}

// Stop terminates the driver and waits for it to return. An in-flight
// purge pass completes before the loop exits.
func (d *PurgeDriver) Stop() {
	close(d.quit)
	d.wg.Wait()
}

func (d *PurgeDriver) loop() {
	defer d.wg.Done()

	alarm := mclock.NewAlarm(d.clock)
	for {
		start := d.clock.Now()
		if err := d.cache.Purge(); err != nil {
			// Timer trouble is transient; the next pass retries.
			log.Warn("Reference cache purge failed", "err", err)
		}
		purgeTimer.Update(time.Duration(d.clock.Now() - start))

		next, ok := d.cache.nextDeadline()
		if !ok {
			// Idle cache. Re-check at TTL granularity in case a wakeup
			// gets lost.
			next = d.clock.Now().Add(d.cache.ttl)
		}
		alarm.Schedule(next)

		select {
		case <-alarm.C():
		case <-d.cache.wakeup:
			// An insert landed in an empty cache or set an earlier
			// deadline than any scheduled; loop around to re-arm.
		case <-d.quit:
			return
		}
	}
}
