// Package session keeps the wallet session triplet (account, network,
// authenticated) consistent while the wallet changes underneath it.
package session

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
)

// sinkBuffer is the per-subscription buffer between a feed and its sink.
const sinkBuffer = 16

// State is the single writer of the session triplet. All reads and writes go
// through one mutex, and every change is emitted while that mutex is held, so
// observers can never see the triplet mid-update: an account change and the
// authenticated reset it forces are one atomic step.
type State struct {
	wallet ports.WalletProvider
	log    zerolog.Logger

	mu            sync.Mutex
	account       common.Address
	network       core.Network
	authenticated bool
	generation    uint64

	accountFeed event.Feed // carries common.Address
	networkFeed event.Feed // carries core.Network
	authFeed    event.Feed // carries bool
	scope       event.SubscriptionScope

	walletCh  chan ports.WalletEvent
	walletSub event.Subscription
	quit      chan struct{}
	loopDone  chan struct{}
}

// New wires a State to the wallet and loads the initial snapshot. The wallet
// event stream is subscribed before the snapshot is taken, so a change racing
// construction is queued and applied after it rather than lost. Loading never
// prompts the user; if the wallet cannot answer, the session simply starts
// disconnected.
func New(ctx context.Context, wallet ports.WalletProvider, log zerolog.Logger) *State {
	s := &State{
		wallet:   wallet,
		log:      log.With().Str("component", "session").Logger(),
		walletCh: make(chan ports.WalletEvent, sinkBuffer),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	s.walletSub = wallet.SubscribeEvents(s.walletCh)

	if accounts, err := wallet.Accounts(ctx); err != nil {
		s.log.Debug().Err(err).Msg("initial account query failed, starting disconnected")
	} else {
		s.ApplyAccounts(accounts)
	}
	if chainID, err := wallet.ChainID(ctx); err != nil {
		s.log.Debug().Err(err).Msg("initial chain query failed, network unknown")
	} else {
		s.setNetwork(core.NetworkFromChainID(chainID))
	}

	go s.loop()
	return s
}

// Close stops event dispatch and tears down all subscriptions.
func (s *State) Close() {
	s.walletSub.Unsubscribe()
	close(s.quit)
	<-s.loopDone
	s.scope.Close()
}

// Account returns the active account; the zero address means disconnected.
func (s *State) Account() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Connected reports whether an account is active.
func (s *State) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account != (common.Address{})
}

// Network returns the last known network of the wallet.
func (s *State) Network() core.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

// Authenticated reports whether the active account has proven key control.
func (s *State) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Generation returns the account generation. It increments on every account
// change and fences MarkAuthenticated against stale logins.
func (s *State) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SubscribeAccount replays the current account to sink and then emits every
// change. The sink should be buffered or promptly drained; delivery is
// in-order and emission blocks on slow subscribers.
func (s *State) SubscribeAccount(sink chan<- common.Address) event.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner := make(chan common.Address, sinkBuffer)
	sub := s.accountFeed.Subscribe(inner)
	return s.scope.Track(forward(s.account, inner, sink, sub))
}

// SubscribeNetwork replays the current network to sink and then emits every
// change.
func (s *State) SubscribeNetwork(sink chan<- core.Network) event.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner := make(chan core.Network, sinkBuffer)
	sub := s.networkFeed.Subscribe(inner)
	return s.scope.Track(forward(s.network, inner, sink, sub))
}

// SubscribeAuthenticated replays the current authenticated flag to sink and
// then emits every change.
func (s *State) SubscribeAuthenticated(sink chan<- bool) event.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner := make(chan bool, sinkBuffer)
	sub := s.authFeed.Subscribe(inner)
	return s.scope.Track(forward(s.authenticated, inner, sink, sub))
}

// forward replays current into sink and then pipes the feed subscription
// through. The replay happens before any change emitted after the subscribe,
// because the caller holds the state mutex while snapshotting current and
// subscribing the feed.
func forward[T any](current T, inner <-chan T, sink chan<- T, sub event.Subscription) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		select {
		case sink <- current:
		case <-quit:
			return nil
		case err := <-sub.Err():
			return err
		}
		for {
			select {
			case v := <-inner:
				select {
				case sink <- v:
				case <-quit:
					return nil
				case err := <-sub.Err():
					return err
				}
			case <-quit:
				return nil
			case err := <-sub.Err():
				return err
			}
		}
	})
}

// ApplyAccounts installs the wallet's account list: the first entry becomes
// the active account, an empty list disconnects. Every applied list forces
// authenticated to false in the same critical section, a redelivery of the
// current account included; only a real change bumps the generation and emits
// on the account stream. It returns the generation the caller can later pass
// to MarkAuthenticated.
func (s *State) ApplyAccounts(accounts []common.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next common.Address
	if len(accounts) > 0 {
		next = accounts[0]
	}
	if len(accounts) > 1 {
		s.log.Warn().
			Int("count", len(accounts)).
			Str("selected", next.Hex()).
			Msg("wallet exposed multiple accounts, using the first")
	}

	wasAuthenticated := s.authenticated
	s.authenticated = false

	if next == s.account {
		if wasAuthenticated {
			s.log.Info().Str("account", next.Hex()).Msg("account redelivered, authentication dropped")
			s.authFeed.Send(false)
		}
		return s.generation
	}

	s.account = next
	s.generation++

	s.log.Info().
		Str("account", next.Hex()).
		Bool("connected", next != common.Address{}).
		Msg("account changed")

	s.accountFeed.Send(next)
	if wasAuthenticated {
		s.authFeed.Send(false)
	}
	return s.generation
}

// MarkAuthenticated flips the authenticated flag for the account generation a
// login flow observed. It refuses when the account changed since, so a login
// that raced an account switch cannot authenticate the wrong account.
func (s *State) MarkAuthenticated(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.account == (common.Address{}) {
		s.log.Warn().
			Uint64("login_generation", generation).
			Uint64("current_generation", s.generation).
			Msg("stale login result discarded")
		return false
	}
	if !s.authenticated {
		s.authenticated = true
		s.authFeed.Send(true)
	}
	return true
}

// ClearAuthenticated drops authentication locally. It is synchronous, cannot
// fail and touches nothing but the flag.
func (s *State) ClearAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authenticated {
		s.authenticated = false
		s.authFeed.Send(false)
	}
}

func (s *State) setNetwork(n core.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n == s.network {
		return
	}
	s.network = n
	s.log.Info().Stringer("network", n).Msg("network changed")
	s.networkFeed.Send(n)
}

// loop applies wallet events one at a time, preserving their order.
func (s *State) loop() {
	defer close(s.loopDone)
	for {
		select {
		case ev := <-s.walletCh:
			switch ev.Kind {
			case ports.AccountsChanged:
				s.ApplyAccounts(ev.Accounts)
			case ports.ChainChanged:
				s.refreshNetwork(ev.ChainID)
			}
		case <-s.quit:
			return
		case err := <-s.walletSub.Err():
			if err != nil {
				s.log.Warn().Err(err).Msg("wallet event stream failed")
			}
			return
		}
	}
}

// refreshNetwork re-queries the wallet after a chain change. The event
// payload is only a fallback; the wallet answer wins when both are available.
func (s *State) refreshNetwork(fallback *big.Int) {
	chainID, err := s.wallet.ChainID(context.Background())
	if err != nil {
		if fallback == nil {
			s.log.Warn().Err(err).Msg("chain changed but wallet will not say to what")
			return
		}
		s.log.Debug().Err(err).Msg("chain re-query failed, trusting event payload")
		chainID = fallback
	}
	s.setNetwork(core.NetworkFromChainID(chainID))
}
