package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
	"github.com/layer-3/taksu/session"
)

// TransferGuard submits native-currency transfers after checking that the
// wallet sits on the network class the caller intends. The check reads the
// tracked session network, so a mismatch is rejected without a single wallet
// round trip.
type TransferGuard struct {
	wallet ports.WalletProvider
	state  *session.State
	log    zerolog.Logger

	productionChainID uint64
	nowFn             func() time.Time
}

// NewTransferGuard creates a guard that treats mainnet as the production
// chain.
func NewTransferGuard(wallet ports.WalletProvider, state *session.State, log zerolog.Logger) *TransferGuard {
	return &TransferGuard{
		wallet:            wallet,
		state:             state,
		log:               log.With().Str("component", "transfer").Logger(),
		productionChainID: core.MainnetChainID,
		nowFn:             time.Now,
	}
}

// UseProductionChain overrides which chain id counts as production.
func (g *TransferGuard) UseProductionChain(chainID uint64) {
	g.productionChainID = chainID
}

// Submit sends amount (a display-unit decimal string) to the given address.
// The production flag states the caller's intent; when it disagrees with the
// wallet's current network the transfer fails with core.ErrWrongNetwork
// before the wallet is asked anything.
func (g *TransferGuard) Submit(ctx context.Context, production bool, to common.Address, amount string) (*core.PendingTransaction, error) {
	network := g.state.Network()
	if !network.Known() {
		return nil, fmt.Errorf("%w: wallet network unknown", core.ErrWrongNetwork)
	}
	onProduction := network.ChainID == g.productionChainID
	if production && !onProduction {
		return nil, fmt.Errorf("%w: expected production chain, wallet is on %s", core.ErrWrongNetwork, network)
	}
	if !production && onProduction {
		return nil, fmt.Errorf("%w: expected a test chain, wallet is on %s", core.ErrWrongNetwork, network)
	}

	value, err := core.ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	accounts, err := g.wallet.RequestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, core.ErrAddressUnavailable
	}
	from := accounts[0]

	hash, err := g.wallet.SendTransaction(ctx, from, to, value)
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	if hash == (common.Hash{}) {
		return nil, core.ErrSubmissionFailed
	}

	g.log.Info().
		Str("hash", hash.Hex()).
		Str("to", to.Hex()).
		Str("amount", amount).
		Bool("production", production).
		Msg("transfer submitted")

	return &core.PendingTransaction{
		Hash:        hash,
		From:        from,
		To:          to,
		Value:       value,
		SubmittedAt: g.nowFn(),
	}, nil
}

// Confirmation performs a single receipt lookup for a submitted transfer.
// (nil, nil) means the chain has no information for the hash yet; that is
// the normal state right after submission, not an error. There is no polling
// and no retry here.
func (g *TransferGuard) Confirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := g.wallet.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("transaction receipt: %w", err)
	}
	if receipt == nil {
		g.log.Debug().Str("hash", hash.Hex()).Msg("no receipt yet")
		return nil, nil
	}
	return receipt, nil
}
