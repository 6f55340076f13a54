// Package walletrpc adapts a MetaMask-compatible JSON-RPC provider to the
// WalletProvider port. Account and chain changes are synthesized by polling,
// since plain HTTP providers have no push channel for them.
package walletrpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
)

// DefaultPollInterval is how often the watcher samples accounts and chain.
const DefaultPollInterval = 2 * time.Second

// Config selects the provider endpoint and how strictly to vet it.
type Config struct {
	// Endpoint is an HTTP, WebSocket or IPC provider URL.
	Endpoint string
	// Brand is a substring expected in web3_clientVersion, e.g. "MetaMask".
	// Empty accepts any provider.
	Brand string
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

// Wallet speaks to the provider over go-ethereum's rpc client.
type Wallet struct {
	client *rpc.Client
	log    zerolog.Logger

	brand        string
	pollInterval time.Duration

	feed  event.Feed // carries ports.WalletEvent
	scope event.SubscriptionScope

	watchOnce sync.Once
	closeOnce sync.Once
	quit      chan struct{}
}

// Dial connects to the provider endpoint.
func Dial(ctx context.Context, cfg Config, log zerolog.Logger) (*Wallet, error) {
	client, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", core.ErrWalletUnavailable, cfg.Endpoint, err)
	}
	return NewWallet(client, cfg, log), nil
}

// NewWallet wraps an existing RPC client. Tests use this with an in-process
// server.
func NewWallet(client *rpc.Client, cfg Config, log zerolog.Logger) *Wallet {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Wallet{
		client:       client,
		log:          log.With().Str("component", "walletrpc").Logger(),
		brand:        cfg.Brand,
		pollInterval: interval,
		quit:         make(chan struct{}),
	}
}

// Close stops the watcher and releases the RPC client.
func (w *Wallet) Close() {
	w.closeOnce.Do(func() {
		close(w.quit)
		w.scope.Close()
		w.client.Close()
	})
}

// Available reports whether the provider answers at all.
func (w *Wallet) Available(ctx context.Context) bool {
	var version string
	return w.client.CallContext(ctx, &version, "web3_clientVersion") == nil
}

// IsSupported reports whether the provider identifies as the configured
// brand. With no brand configured any answering provider passes.
func (w *Wallet) IsSupported(ctx context.Context) bool {
	var version string
	if err := w.client.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		return false
	}
	if w.brand == "" {
		return true
	}
	return strings.Contains(strings.ToLower(version), strings.ToLower(w.brand))
}

// Accounts returns the authorized accounts without prompting.
func (w *Wallet) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := w.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, mapRPCError(err)
	}
	return accounts, nil
}

// RequestAccounts asks the provider for account access, prompting the user
// where the provider supports it. Providers without eth_requestAccounts
// (plain dev nodes) fall back to eth_accounts.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := w.client.CallContext(ctx, &accounts, "eth_requestAccounts")
	if err == nil {
		return accounts, nil
	}
	if isMethodNotFound(err) {
		return w.Accounts(ctx)
	}
	return nil, mapRPCError(err)
}

// ChainID returns the provider's current chain id.
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := w.client.CallContext(ctx, &result, "eth_chainId"); err != nil {
		return nil, mapRPCError(err)
	}
	return (*big.Int)(&result), nil
}

// SignMessage signs msg with the key behind from via personal_sign.
func (w *Wallet) SignMessage(ctx context.Context, from common.Address, msg []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := w.client.CallContext(ctx, &sig, "personal_sign", hexutil.Encode(msg), from); err != nil {
		return nil, mapRPCError(err)
	}
	return sig, nil
}

// sendTxArgs is the eth_sendTransaction parameter object. Gas and nonce are
// left to the provider, the way browser wallets fill them in.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// SendTransaction submits a value transfer through the provider.
func (w *Wallet) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error) {
	args := sendTxArgs{
		From:  from,
		To:    &to,
		Value: (*hexutil.Big)(value),
	}
	var hash common.Hash
	if err := w.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, mapRPCError(err)
	}
	return hash, nil
}

// TransactionReceipt performs a single receipt lookup. A null answer means
// the chain has no information yet and comes back as (nil, nil).
func (w *Wallet) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := w.client.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, mapRPCError(err)
	}
	return receipt, nil
}

// SubscribeEvents starts the poll watcher on first use and delivers change
// events to sink in order. The watcher baseline is sampled before this
// returns, so a change landing right after subscription is diffed against
// the state the subscriber saw, not silently absorbed into the baseline.
func (w *Wallet) SubscribeEvents(sink chan<- ports.WalletEvent) event.Subscription {
	w.watchOnce.Do(func() {
		accounts, chainID, err := w.sample()
		if err != nil {
			w.log.Debug().Err(err).Msg("baseline sample failed, priming deferred to the poll loop")
		}
		go w.watch(err == nil, accounts, chainID)
	})
	return w.scope.Track(w.feed.Subscribe(sink))
}
