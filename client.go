// Package taksu bundles a wallet, its tracked session state and the login
// and transfer flows into a single client.
package taksu

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
	"github.com/layer-3/taksu/service"
	"github.com/layer-3/taksu/session"
)

// Client composes the session state, the login flow and the transfer guard
// around one wallet and one verifier. The fields are exported for callers
// that need the underlying pieces, such as the session's subscription
// streams.
type Client struct {
	State    *session.State
	Auth     *service.AuthService
	Transfer *service.TransferGuard
}

// NewClient builds the full client stack over the given wallet. It starts
// the session's event processing; Close releases it.
func NewClient(ctx context.Context, wallet ports.WalletProvider, verifier ports.Verifier, log zerolog.Logger) *Client {
	state := session.New(ctx, wallet, log)
	return &Client{
		State:    state,
		Auth:     service.NewAuthService(wallet, verifier, state, log),
		Transfer: service.NewTransferGuard(wallet, state, log),
	}
}

// Close stops the session's event processing.
func (c *Client) Close() {
	c.State.Close()
}

// Login runs the wallet login handshake and returns the proven address.
func (c *Client) Login(ctx context.Context) (common.Address, error) {
	return c.Auth.Login(ctx)
}

// Logout drops the authenticated flag. It never fails.
func (c *Client) Logout() {
	c.Auth.Logout()
}

// Submit sends amount to the given address after the production/test
// network check.
func (c *Client) Submit(ctx context.Context, production bool, to common.Address, amount string) (*core.PendingTransaction, error) {
	return c.Transfer.Submit(ctx, production, to, amount)
}

// Confirmation reports the receipt of a submitted transfer, or (nil, nil)
// when the chain has no information for it yet.
func (c *Client) Confirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.Transfer.Confirmation(ctx, hash)
}
