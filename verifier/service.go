// Package verifier implements the backend side of the login handshake:
// challenge issuance and signature verdicts.
package verifier

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/internal/eth"
	"github.com/layer-3/taksu/ports"
)

// Service issues challenge nonces and judges the signatures that come back.
// A verdict of false covers every rejection: spent or unknown nonce,
// malformed input, signer mismatch. Errors are reserved for internal faults.
type Service struct {
	issuer   ports.ChallengeIssuer
	eventPub ports.EventPublisher
	log      zerolog.Logger
}

// NewService creates a new verification service.
func NewService(issuer ports.ChallengeIssuer, eventPub ports.EventPublisher, log zerolog.Logger) *Service {
	return &Service{
		issuer:   issuer,
		eventPub: eventPub,
		log:      log.With().Str("component", "verifier").Logger(),
	}
}

// GenerateNonce issues a fresh single-use challenge nonce.
func (s *Service) GenerateNonce(ctx context.Context) (string, error) {
	nonce, err := s.issuer.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("issue challenge: %w", err)
	}
	return nonce, nil
}

// VerifyMessage decides whether signature was produced over message by the
// key behind address, and whether message is a live challenge. The nonce is
// redeemed before the signature is checked, so a nonce can never be
// presented twice even when the first attempt carried a bad signature.
func (s *Service) VerifyMessage(ctx context.Context, message, address, signature string) (bool, error) {
	live, err := s.issuer.Redeem(ctx, message)
	if err != nil {
		return false, fmt.Errorf("redeem challenge: %w", err)
	}
	if !live {
		s.reject(ctx, address, "unknown or spent challenge")
		return false, nil
	}

	if !common.IsHexAddress(address) {
		s.reject(ctx, address, "malformed address")
		return false, nil
	}
	claimed := common.HexToAddress(address)

	sig, err := eth.ParseSignature(signature)
	if err != nil {
		s.reject(ctx, address, "malformed signature")
		return false, nil
	}

	recovered, err := eth.RecoverAddress([]byte(message), sig)
	if err != nil {
		s.reject(ctx, address, "unrecoverable signature")
		return false, nil
	}
	if recovered != claimed {
		s.reject(ctx, address, "signer mismatch")
		return false, nil
	}

	if err := s.eventPub.PublishAuthenticated(ctx, claimed, message); err != nil {
		// The verdict stands; event delivery is best effort.
		s.log.Warn().Err(err).Msg("failed to publish authenticated event")
	}
	s.log.Info().Str("address", claimed.Hex()).Msg("signature verified")
	return true, nil
}

func (s *Service) reject(ctx context.Context, address, reason string) {
	s.log.Info().Str("address", address).Str("reason", reason).Msg("signature rejected")
	if err := s.eventPub.PublishRejected(ctx, address, reason); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish rejected event")
	}
}
