package walletrpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/taksu/ports"
)

// sample reads the current accounts and chain id within one poll interval.
func (w *Wallet) sample() ([]common.Address, *big.Int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.pollInterval)
	defer cancel()

	accounts, err := w.Accounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return nil, nil, err
	}
	return accounts, chainID, nil
}

// watch polls accounts and chain id and emits an event when either moves
// away from the baseline. The baseline arrives from the synchronous sample
// taken at subscription time; when that sample failed, the first successful
// poll primes it instead. The baseline itself is never emitted, the
// subscriber loads its own initial snapshot.
func (w *Wallet) watch(primed bool, lastAccounts []common.Address, lastChain *big.Int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ticker.C:
		}

		accounts, chainID, err := w.sample()
		if err != nil {
			w.log.Debug().Err(err).Msg("wallet poll failed")
			continue
		}

		if !primed {
			lastAccounts = accounts
			lastChain = chainID
			primed = true
			continue
		}

		if !sameAccounts(accounts, lastAccounts) {
			lastAccounts = accounts
			w.log.Debug().Int("count", len(accounts)).Msg("accounts changed")
			w.feed.Send(ports.WalletEvent{Kind: ports.AccountsChanged, Accounts: accounts})
		}
		if lastChain.Cmp(chainID) != 0 {
			lastChain = chainID
			w.log.Debug().Str("chain_id", chainID.String()).Msg("chain changed")
			w.feed.Send(ports.WalletEvent{Kind: ports.ChainChanged, ChainID: chainID})
		}
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
