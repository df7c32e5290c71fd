package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vidar-chain/vidar/core/types"
)

var (
	// ErrUnknownAncestor is returned when a header's parent is neither
	// cached nor committed to storage.
	ErrUnknownAncestor = errors.New("unknown ancestor")

	// ErrOlderBlockDate is returned when a header's date is not strictly
	// after its parent's.
	ErrOlderBlockDate = errors.New("block date not strictly after parent's")

	// ErrNonSequentialChainLength is returned when a header's chain length
	// is not its parent's successor.
	ErrNonSequentialChainLength = errors.New("chain length is not parent's successor")

	// ErrInvalidSignature is returned when the header signature does not
	// check out against the leader's key.
	ErrInvalidSignature = errors.New("invalid header signature")
)

// MissingParentError rejects a header whose parent was not found. The
// header is carried along so the caller can park it and retry once the
// ancestor shows up.
type MissingParentError struct {
	Header *types.Header
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("header %x: parent %x neither cached nor stored", e.Header.Hash(), e.Header.ParentHash)
}

func (e *MissingParentError) Unwrap() error { return ErrUnknownAncestor }

// VerificationError rejects a header that fails a structural or signature
// check. Terminal for the header: retrying cannot succeed.
type VerificationError struct {
	Hash common.Hash
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("header %x rejected: %v", e.Hash, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the durable block store. It is passed
// through to the caller unchanged; the quarantine never recovers from it
// locally.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }
