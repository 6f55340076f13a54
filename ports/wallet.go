package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// WalletEventKind discriminates wallet change notifications.
type WalletEventKind int

const (
	// AccountsChanged reports a new authorized account list.
	AccountsChanged WalletEventKind = iota
	// ChainChanged reports that the wallet switched chains.
	ChainChanged
)

// WalletEvent is a change notification from the wallet. Events for accounts
// and chain travel on one stream so their relative order is preserved.
type WalletEvent struct {
	Kind     WalletEventKind
	Accounts []common.Address // AccountsChanged payload
	ChainID  *big.Int         // ChainChanged payload
}

// WalletProvider is the capability surface of an external wallet. Methods
// return core sentinel errors (wrapped) for the failures callers dispatch on.
type WalletProvider interface {
	// Available reports whether a wallet is reachable at all.
	Available(ctx context.Context) bool

	// IsSupported reports whether the wallet identifies as a supported brand.
	IsSupported(ctx context.Context) bool

	// Accounts returns the already-authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)

	// RequestAccounts asks for account access and may prompt the user.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the id of the chain the wallet is connected to.
	ChainID(ctx context.Context) (*big.Int, error)

	// SignMessage signs msg with the key behind from (personal_sign).
	SignMessage(ctx context.Context, from common.Address, msg []byte) ([]byte, error)

	// SendTransaction submits a value transfer and returns its hash.
	SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error)

	// TransactionReceipt performs a single receipt lookup. It returns
	// (nil, nil) when the chain has no information for the hash yet.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	// SubscribeEvents delivers wallet change events to sink in order.
	SubscribeEvents(sink chan<- WalletEvent) event.Subscription
}
