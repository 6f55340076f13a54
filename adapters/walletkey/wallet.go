// Package walletkey implements the WalletProvider port with an in-process
// secp256k1 key: a headless substitute for a browser wallet, used by the
// login demo and anywhere no interactive wallet exists.
package walletkey

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/internal/eth"
	"github.com/layer-3/taksu/ports"
)

// transferGas is the intrinsic gas of a plain value transfer.
const transferGas = 21000

// Config wires the wallet to a chain. Both fields are optional: without an
// RPC endpoint the wallet is sign-only, and a static chain id short-circuits
// the chain id query.
type Config struct {
	RPC     string
	ChainID uint64
}

// Wallet holds a raw private key. It always identifies and signs; sending
// and receipt lookups need the RPC client and otherwise fail with
// core.ErrWalletUnavailable.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	client  *ethclient.Client // nil in sign-only mode
	chainID *big.Int          // nil means ask the client
	log     zerolog.Logger

	feed  event.Feed // carries ports.WalletEvent; a key wallet never emits
	scope event.SubscriptionScope
}

// New wraps an existing private key.
func New(ctx context.Context, key *ecdsa.PrivateKey, cfg Config, log zerolog.Logger) (*Wallet, error) {
	w := &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		log:     log.With().Str("component", "walletkey").Logger(),
	}
	if cfg.ChainID != 0 {
		w.chainID = new(big.Int).SetUint64(cfg.ChainID)
	}
	if cfg.RPC != "" {
		client, err := ethclient.DialContext(ctx, cfg.RPC)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", core.ErrWalletUnavailable, cfg.RPC, err)
		}
		w.client = client
	}
	return w, nil
}

// FromHex creates a wallet from a hex-encoded private key.
func FromHex(ctx context.Context, hexKey string, cfg Config, log zerolog.Logger) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return New(ctx, key, cfg, log)
}

// FromKeyFile loads a wallet from a hex-encoded private key file.
func FromKeyFile(ctx context.Context, path string, cfg Config, log zerolog.Logger) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return FromHex(ctx, string(data), cfg, log)
}

// Generate creates a wallet with a fresh random key.
func Generate(ctx context.Context, cfg Config, log zerolog.Logger) (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return New(ctx, key, cfg, log)
}

// Close releases the RPC client and active subscriptions.
func (w *Wallet) Close() {
	w.scope.Close()
	if w.client != nil {
		w.client.Close()
	}
}

// Address returns the wallet's address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Available always holds: the key is in this process.
func (w *Wallet) Available(ctx context.Context) bool { return true }

// IsSupported always holds for the in-process wallet.
func (w *Wallet) IsSupported(ctx context.Context) bool { return true }

// Accounts returns the single held account.
func (w *Wallet) Accounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{w.address}, nil
}

// RequestAccounts returns the single held account; there is nobody to
// prompt.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{w.address}, nil
}

// ChainID returns the configured chain id, or asks the RPC client.
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	if w.chainID != nil {
		return new(big.Int).Set(w.chainID), nil
	}
	if w.client == nil {
		return nil, fmt.Errorf("%w: no chain configured", core.ErrWalletUnavailable)
	}
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return chainID, nil
}

// SignMessage signs msg with the held key (personal_sign semantics).
func (w *Wallet) SignMessage(ctx context.Context, from common.Address, msg []byte) ([]byte, error) {
	if from != w.address {
		return nil, fmt.Errorf("%w: signer %s not held", core.ErrAddressUnavailable, from.Hex())
	}
	return eth.Sign(msg, w.key)
}

// SendTransaction builds, signs and submits a plain value transfer.
func (w *Wallet) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error) {
	if w.client == nil {
		return common.Hash{}, fmt.Errorf("%w: no RPC endpoint configured", core.ErrWalletUnavailable)
	}
	if from != w.address {
		return common.Hash{}, fmt.Errorf("%w: sender %s not held", core.ErrAddressUnavailable, from.Hex())
	}

	chainID, err := w.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx, err := w.buildTransfer(ctx, chainID, nonce, to, value)
	if err != nil {
		return common.Hash{}, err
	}

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
			return common.Hash{}, fmt.Errorf("%w: %v", core.ErrInsufficientFunds, err)
		}
		return common.Hash{}, fmt.Errorf("%w: %v", core.ErrSubmissionFailed, err)
	}

	w.log.Debug().Str("hash", signedTx.Hash().Hex()).Msg("transaction sent")
	return signedTx.Hash(), nil
}

// buildTransfer prefers EIP-1559 fees and falls back to a legacy gas price
// when the chain predates the fee market.
func (w *Wallet) buildTransfer(ctx context.Context, chainID *big.Int, nonce uint64, to common.Address, value *big.Int) (*types.Transaction, error) {
	tip, tipErr := w.client.SuggestGasTipCap(ctx)
	head, headErr := w.client.HeaderByNumber(ctx, nil)

	if tipErr == nil && headErr == nil && head.BaseFee != nil {
		feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			Gas:       transferGas,
			To:        &to,
			Value:     value,
			GasTipCap: tip,
			GasFeeCap: feeCap,
		}), nil
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		Gas:      transferGas,
		To:       &to,
		Value:    value,
		GasPrice: gasPrice,
	}), nil
}

// TransactionReceipt performs a single receipt lookup; a transaction the
// chain does not know yet comes back as (nil, nil).
func (w *Wallet) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if w.client == nil {
		return nil, fmt.Errorf("%w: no RPC endpoint configured", core.ErrWalletUnavailable)
	}
	receipt, err := w.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transaction receipt: %w", err)
	}
	return receipt, nil
}

// SubscribeEvents satisfies the port; a key wallet never changes account or
// chain, so the stream stays silent until unsubscribed.
func (w *Wallet) SubscribeEvents(sink chan<- ports.WalletEvent) event.Subscription {
	return w.scope.Track(w.feed.Subscribe(sink))
}
