package params

import "time"

const (
	DefaultRefCacheTTL    = 5 * time.Minute // Idle interval after which a quarantined entry may be purged.
	DefaultPendingHeaders = 2048            // Bounds the unknown ancestors that headers are parked under.
)
