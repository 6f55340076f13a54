package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTransaction describes a transfer the wallet has accepted for
// submission. Acceptance says nothing about inclusion; confirmation is a
// separate lookup against the chain.
type PendingTransaction struct {
	Hash        common.Hash
	From        common.Address
	To          common.Address
	Value       *big.Int // base units
	SubmittedAt time.Time
}
