package rawdb

import "github.com/ethereum/go-ethereum/common"

// The fields below define the low level database schema prefixing.
var (
	// headBlockKey tracks the latest known full block's hash.
	headBlockKey = []byte("LastBlock")

	// uncleanShutdownKey tracks the list of local crashes.
	uncleanShutdownKey = []byte("unclean-shutdown")

	blockPrefix = []byte("b") // blockPrefix + hash -> block
)

// BlockKey = blockPrefix + hash
func BlockKey(hash common.Hash) []byte {
	return append(blockPrefix, hash.Bytes()...)
}
