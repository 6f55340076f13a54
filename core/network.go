package core

import (
	"fmt"
	"math/big"
)

// MainnetChainID is the chain id of the Ethereum production network.
const MainnetChainID uint64 = 1

// Network identifies the chain a wallet is connected to. The zero value
// means the network is not yet known.
type Network struct {
	ChainID uint64
	Name    string
}

var networkNames = map[uint64]string{
	1:        "mainnet",
	5:        "goerli",
	10:       "optimism",
	137:      "polygon",
	8453:     "base",
	17000:    "holesky",
	42161:    "arbitrum",
	84532:    "base-sepolia",
	11155111: "sepolia",
}

// NetworkFromChainID resolves a chain id reported by a wallet into a Network.
// Unknown chains get a synthetic name so they stay distinguishable in logs.
func NetworkFromChainID(id *big.Int) Network {
	if id == nil || id.Sign() <= 0 || !id.IsUint64() {
		return Network{}
	}
	chainID := id.Uint64()
	name, ok := networkNames[chainID]
	if !ok {
		name = fmt.Sprintf("chain-%d", chainID)
	}
	return Network{ChainID: chainID, Name: name}
}

// Known reports whether the network has been resolved at all.
func (n Network) Known() bool {
	return n.ChainID != 0
}

// Production reports whether the network is the Ethereum production chain.
func (n Network) Production() bool {
	return n.ChainID == MainnetChainID
}

func (n Network) String() string {
	if !n.Known() {
		return "unknown"
	}
	return fmt.Sprintf("%s (%d)", n.Name, n.ChainID)
}
