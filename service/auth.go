package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
	"github.com/layer-3/taksu/session"
)

// Phase is a step of the login handshake.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequesting
	PhaseNonceFetched
	PhaseSigning
	PhaseVerifying
	PhaseAuthenticated
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequesting:
		return "requesting"
	case PhaseNonceFetched:
		return "nonce_fetched"
	case PhaseSigning:
		return "signing"
	case PhaseVerifying:
		return "verifying"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// AuthService drives the challenge-response login against the verifier:
// request accounts, fetch a nonce, sign it, have the backend judge the
// signature. Only a verdict from the backend authenticates the session.
type AuthService struct {
	wallet   ports.WalletProvider
	verifier ports.Verifier
	state    *session.State
	log      zerolog.Logger

	// loginMu admits one login at a time; a concurrent attempt fails fast
	// with core.ErrLoginInFlight instead of queueing behind the prompt.
	loginMu sync.Mutex

	statusMu sync.Mutex
	phase    Phase
	lastErr  error
}

// NewAuthService creates a new login flow bound to the given session state.
func NewAuthService(
	wallet ports.WalletProvider,
	verifier ports.Verifier,
	state *session.State,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		wallet:   wallet,
		verifier: verifier,
		state:    state,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

// Phase returns the current step of the login flow.
func (s *AuthService) Phase() Phase {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.phase
}

// LastError returns the failure reason of the most recent login, if any.
func (s *AuthService) LastError() error {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastErr
}

// Login runs the handshake and returns the authenticated address. Entering
// the flow drops any existing authentication first: every login re-proves
// key control from scratch.
func (s *AuthService) Login(ctx context.Context) (common.Address, error) {
	if !s.loginMu.TryLock() {
		return common.Address{}, core.ErrLoginInFlight
	}
	defer s.loginMu.Unlock()

	s.state.ClearAuthenticated()

	s.statusMu.Lock()
	s.lastErr = nil
	s.statusMu.Unlock()

	s.setPhase(PhaseRequesting)
	if !s.wallet.Available(ctx) {
		return common.Address{}, s.fail(core.ErrWalletUnavailable)
	}

	accounts, err := s.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, s.fail(fmt.Errorf("request accounts: %w", err))
	}
	if len(accounts) == 0 {
		return common.Address{}, s.fail(core.ErrAddressUnavailable)
	}
	signer := accounts[0]
	generation := s.state.ApplyAccounts(accounts)

	nonce, err := s.verifier.GenerateNonce(ctx)
	if err != nil {
		return common.Address{}, s.fail(fmt.Errorf("generate nonce: %w", err))
	}
	if nonce == "" {
		return common.Address{}, s.fail(core.ErrNonceMissing)
	}
	s.setPhase(PhaseNonceFetched)

	s.setPhase(PhaseSigning)
	signature, err := s.wallet.SignMessage(ctx, signer, []byte(nonce))
	if err != nil {
		return common.Address{}, s.fail(fmt.Errorf("%w: %w", core.ErrSigningRejected, err))
	}

	s.setPhase(PhaseVerifying)
	valid, err := s.verifier.VerifyMessage(ctx, nonce, signer, signature)
	if err != nil {
		return common.Address{}, s.fail(fmt.Errorf("verify message: %w", err))
	}
	if !valid {
		return common.Address{}, s.fail(core.ErrSignatureInvalid)
	}

	// The generation fence rejects the verdict if the wallet switched
	// accounts while we were signing or verifying.
	if !s.state.MarkAuthenticated(generation) {
		return common.Address{}, s.fail(core.ErrStaleLogin)
	}

	s.setPhase(PhaseAuthenticated)
	s.log.Info().Str("address", signer.Hex()).Msg("authenticated")
	return signer, nil
}

// Logout drops authentication locally. It is synchronous, performs no
// network calls and cannot fail.
func (s *AuthService) Logout() {
	s.state.ClearAuthenticated()

	s.statusMu.Lock()
	s.phase = PhaseIdle
	s.lastErr = nil
	s.statusMu.Unlock()

	s.log.Info().Msg("logged out")
}

func (s *AuthService) setPhase(p Phase) {
	s.statusMu.Lock()
	s.phase = p
	s.statusMu.Unlock()
	s.log.Debug().Stringer("phase", p).Msg("login phase")
}

func (s *AuthService) fail(err error) error {
	s.statusMu.Lock()
	s.phase = PhaseFailed
	s.lastErr = err
	s.statusMu.Unlock()
	s.log.Warn().Err(err).Msg("login failed")
	return err
}
