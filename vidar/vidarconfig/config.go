package vidarconfig

import (
	"time"

	"github.com/vidar-chain/vidar/params"
)

// Defaults contains the default settings for use on the main network.
var Defaults = Config{
	RefCacheTTL:     params.DefaultRefCacheTTL,
	PendingHeaders:  params.DefaultPendingHeaders,
	DatabaseCache:   512,
	DatabaseHandles: 256,
}

// Config contains configuration options for the Vidar chain service.
type Config struct {
	// RefCacheTTL bounds how long an untouched quarantined reference
	// stays in the in-memory cache before it becomes purgeable.
	RefCacheTTL time.Duration

	// PendingHeaders bounds the number of ancestors the ingest handler
	// parks headers under while waiting for the ancestor to arrive.
	PendingHeaders int

	// Database options
	DatabaseHandles int `toml:"-"`
	DatabaseCache   int
}
