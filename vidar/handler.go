package vidar

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"

	"github.com/vidar-chain/vidar/core"
	"github.com/vidar-chain/vidar/core/types"
)

const headerChanSize = 256

// handler drains observed headers into the quarantine, off the network
// task's critical path. Headers rejected for a missing ancestor are parked
// under that ancestor's hash and retried the moment it is admitted;
// headers failing verification are dropped.
type handler struct {
	backend *Vidar

	headerCh chan *types.Header

	// pending maps a missing ancestor to the headers waiting on it. The
	// bound evicts the least recently used ancestor wholesale; its children will be
	// re-observed by the network eventually.
	pending *lru.Cache[common.Hash, []*types.Header]

	quit chan struct{}
	wg   sync.WaitGroup
}

func newHandler(backend *Vidar, pendingLimit int) *handler {
	return &handler{
		backend:  backend,
		headerCh: make(chan *types.Header, headerChanSize),
		pending:  lru.NewCache[common.Hash, []*types.Header](pendingLimit),
		quit:     make(chan struct{}),
	}
}

func (h *handler) Start() {
	h.wg.Add(1)
	go h.loop()
}

func (h *handler) Stop() {
	close(h.quit)
	h.wg.Wait()
}

// enqueue hands a header to the ingest loop, blocking for backpressure.
// It reports false if the handler is shutting down.
func (h *handler) enqueue(header *types.Header) bool {
	select {
	case h.headerCh <- header:
		return true
	case <-h.quit:
		return false
	}
}

func (h *handler) loop() {
	defer h.wg.Done()

	for {
		select {
		case header := <-h.headerCh:
			h.apply(header)
		case <-h.quit:
			return
		}
	}
}

func (h *handler) apply(header *types.Header) {
	triage, err := h.backend.ApplyHeader(context.Background(), header)
	if err == nil {
		switch triage.Status {
		case core.TriageQuarantined:
			log.Debug("Header quarantined", "hash", triage.Hash, "length", header.ChainLength, "date", header.Date)
			h.release(triage.Hash)
		case core.TriageAlreadyPresent:
			log.Trace("Header already present", "hash", triage.Hash)
			h.release(triage.Hash)
		}
		return
	}

	var missing *core.MissingParentError
	var invalid *core.VerificationError
	switch {
	case errors.As(err, &missing):
		h.park(missing.Header)
		log.Debug("Header parked awaiting ancestor", "hash", missing.Header.Hash(), "ancestor", missing.Header.ParentHash)
	case errors.As(err, &invalid):
		log.Warn("Dropping invalid header", "hash", invalid.Hash, "err", invalid.Err)
	default:
		log.Error("Header triage failed", "hash", header.Hash(), "err", err)
	}
}

// release re-applies the headers parked under an ancestor that just became
// resolvable.
func (h *handler) release(ancestor common.Hash) {
	children, ok := h.pending.Get(ancestor)
	if !ok {
		return
	}
	h.pending.Remove(ancestor)
	for _, child := range children {
		h.apply(child)
	}
}

func (h *handler) park(header *types.Header) {
	ancestor := header.ParentHash
	children, _ := h.pending.Get(ancestor)
	hash := header.Hash()
	for _, c := range children {
		if c.Hash() == hash {
			return
		}
	}
	h.pending.Add(ancestor, append(children, header))
}
