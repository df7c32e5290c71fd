// Package consensus defines the verification hooks the chain plumbing
// calls into. The quarantine consults an Engine before admitting headers;
// everything else about leader election and voting lives behind it.
package consensus

import (
	"github.com/vidar-chain/vidar/core/types"
)

// Engine is an algorithm agnostic consensus engine.
type Engine interface {
	// VerifyHeaderSignature checks that the header's signing data was
	// actually signed by the slot leader's key. A non-nil error rejects
	// the header before any chain-structural validation runs.
	VerifyHeaderSignature(header *types.Header) error
}
