package params

import (
	"fmt"
	"math/big"
)

var (
	// MainnetChainConfig is the chain parameters to run a node on the main network.
	MainnetChainConfig = &ChainConfig{
		ChainID:       big.NewInt(1904),
		SlotsPerEpoch: 43200,
	}

	// TestnetChainConfig contains the chain parameters of the public test network.
	TestnetChainConfig = &ChainConfig{
		ChainID:       big.NewInt(19040),
		SlotsPerEpoch: 7200,
	}

	// TestChainConfig is used for unit tests. Short epochs keep date
	// arithmetic visible in fixtures.
	TestChainConfig = &ChainConfig{
		ChainID:       big.NewInt(1337),
		SlotsPerEpoch: 100,
	}
)

// ChainConfig is the set of network parameters a Vidar node is bound to.
// For any specific network, it should not be changed after launch.
type ChainConfig struct {
	// ChainID distinguishes the network and prevents replay between chains.
	ChainID *big.Int `json:"chainId"`

	// SlotsPerEpoch is the number of leader slots in one epoch. Block dates
	// are expressed as epoch.slot pairs against this schedule.
	SlotsPerEpoch uint64 `json:"slotsPerEpoch"`
}

// Description returns a human-readable description of ChainConfig.
func (c *ChainConfig) Description() string {
	var banner string
	banner += fmt.Sprintf("Chain ID:         %v\n", c.ChainID)
	banner += fmt.Sprintf("Slots per epoch:  %d\n", c.SlotsPerEpoch)
	return banner
}
