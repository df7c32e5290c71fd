package vidar

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"

	"github.com/vidar-chain/vidar/core"
	"github.com/vidar-chain/vidar/core/types"
	"github.com/vidar-chain/vidar/internal/shutdowncheck"
	"github.com/vidar-chain/vidar/vidar/vidarconfig"
)

var errDatadirUsed = errors.New("datadir already used by another process")

// QuarantinedHeaderEvent is posted when a header is admitted into the
// quarantine. The body fetcher and the promotion path hang off of it.
type QuarantinedHeaderEvent struct {
	Hash   common.Hash
	Header *types.Header
}

// Vidar implements the Vidar header triage service: the durable block
// store, the quarantine staging observed headers against it, the cache
// expiration driver and the header ingest handler.
type Vidar struct {
	config *vidarconfig.Config

	// DB interfaces
	chainDb ethdb.Database // Block chain database
	dirLock *flock.Flock   // prevents concurrent use of the datadir

	store      *core.ChainStore
	quarantine *core.Quarantine
	purge      *core.PurgeDriver
	handler    *handler

	quarantinedFeed event.Feed
	scope           event.SubscriptionScope

	shutdownTracker *shutdowncheck.ShutdownTracker // Tracks if and when the node has shutdown ungracefully
}

// New creates a Vidar chain service. An empty datadir runs the service on
// an in-memory database; restarts then begin from an empty store, the same
// way the reference cache always begins empty.
func New(datadir string, config *vidarconfig.Config) (*Vidar, error) {
	var (
		chainDb ethdb.Database
		dirLock *flock.Flock
	)
	if datadir == "" {
		chainDb = gethrawdb.NewMemoryDatabase()
	} else {
		if err := os.MkdirAll(datadir, 0700); err != nil {
			return nil, err
		}
		// Hold the instance lock for as long as the database is open.
		dirLock = flock.New(filepath.Join(datadir, "LOCK"))
		locked, err := dirLock.TryLock()
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, errDatadirUsed
		}
		chainDb, err = gethrawdb.NewLevelDBDatabase(
			filepath.Join(datadir, "chaindata"),
			config.DatabaseCache,
			config.DatabaseHandles,
			"vidar/db/chaindata/",
			false,
		)
		if err != nil {
			dirLock.Unlock()
			return nil, err
		}
	}

	store := core.NewChainStore(chainDb)
	// The signature-checking engine is not wired in yet, so admission runs
	// with the verification slot open.
	quarantine := core.NewQuarantine(store, nil, config.RefCacheTTL)

	v := &Vidar{
		config:          config,
		chainDb:         chainDb,
		dirLock:         dirLock,
		store:           store,
		quarantine:      quarantine,
		shutdownTracker: shutdowncheck.NewShutdownTracker(chainDb),
	}
	v.purge = core.NewPurgeDriver(quarantine)
	v.handler = newHandler(v, config.PendingHeaders)

	// Successful startup; push a marker and check previous unclean shutdowns.
	v.shutdownTracker.MarkStartup()

	return v, nil
}

// Start launches the internal goroutines needed by the service: the cache
// expiration driver and the header ingest loop.
func (s *Vidar) Start() error {
	// Regularly update shutdown marker
	s.shutdownTracker.Start()

	s.purge.Start()
	s.handler.Start()
	log.Info("Header quarantine online", "ttl", s.config.RefCacheTTL)
	return nil
}

// Stop terminates all internal goroutines and releases the datadir. The
// ingest handler stops first, leaving any still-queued headers unapplied,
// so no apply races the purge driver teardown.
func (s *Vidar) Stop() error {
	s.handler.Stop()
	s.purge.Stop()
	s.scope.Close()

	s.shutdownTracker.Stop()
	s.chainDb.Close()
	if s.dirLock != nil {
		s.dirLock.Unlock()
	}
	return nil
}

// Quarantine exposes the triage core for direct lookups.
func (s *Vidar) Quarantine() *core.Quarantine { return s.quarantine }

// Store exposes the durable block store handle.
func (s *Vidar) Store() *core.ChainStore { return s.store }

// ChainDb returns the service's chain database.
func (s *Vidar) ChainDb() ethdb.Database { return s.chainDb }

// ApplyHeader triages an observed header and announces the admission to
// subscribers.
func (s *Vidar) ApplyHeader(ctx context.Context, header *types.Header) (core.Triage, error) {
	triage, err := s.quarantine.ApplyHeader(ctx, header)
	if err == nil && triage.Status == core.TriageQuarantined {
		s.quarantinedFeed.Send(QuarantinedHeaderEvent{Hash: triage.Hash, Header: header})
	}
	return triage, err
}

// EnqueueHeader hands an observed header to the ingest loop. It reports
// false if the service is shutting down.
func (s *Vidar) EnqueueHeader(header *types.Header) bool {
	return s.handler.enqueue(header)
}

// SubscribeQuarantinedHeaders registers a subscription for admitted
// headers.
func (s *Vidar) SubscribeQuarantinedHeaders(ch chan<- QuarantinedHeaderEvent) event.Subscription {
	return s.scope.Track(s.quarantinedFeed.Subscribe(ch))
}
