// Command taksu-login runs the wallet login handshake against a verifier
// without a browser wallet, using a raw private key.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/adapters/verifierhttp"
	"github.com/layer-3/taksu/adapters/walletkey"
	"github.com/layer-3/taksu/service"
	"github.com/layer-3/taksu/session"
)

func main() {
	var (
		verifierURL = flag.String("verifier", "http://localhost:9000", "base URL of the verifier")
		keyHex      = flag.String("key", "", "hex-encoded private key (generated when empty)")
		keyFile     = flag.String("keyfile", "", "file holding a hex-encoded private key")
		rpcURL      = flag.String("rpc", "", "optional Ethereum RPC endpoint")
		chainID     = flag.Uint64("chain-id", 1, "chain id to assume when no RPC endpoint is set")
		timeout     = flag.Duration("timeout", 30*time.Second, "overall login deadline")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := walletkey.Config{RPC: *rpcURL, ChainID: *chainID}

	var (
		wallet *walletkey.Wallet
		err    error
	)
	switch {
	case *keyFile != "":
		wallet, err = walletkey.FromKeyFile(ctx, *keyFile, cfg, logger)
	case *keyHex != "":
		wallet, err = walletkey.FromHex(ctx, *keyHex, cfg, logger)
	default:
		wallet, err = walletkey.Generate(ctx, cfg, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open wallet")
	}
	defer wallet.Close()

	state := session.New(ctx, wallet, logger)
	defer state.Close()

	auth := service.NewAuthService(wallet, verifierhttp.NewClient(*verifierURL), state, logger)

	address, err := auth.Login(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("phase", auth.Phase().String()).Msg("login failed")
	}

	logger.Info().
		Str("address", address.Hex()).
		Str("network", state.Network().String()).
		Bool("authenticated", state.Authenticated()).
		Msg("login complete")
}
