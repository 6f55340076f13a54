// Package challenge provides the two challenge issuers: opaque random
// nonces tracked in a store, and self-describing ES256 JWT challenges.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/layer-3/taksu/ports"
)

// DefaultTTL is how long an unredeemed challenge stays valid.
const DefaultTTL = 5 * time.Minute

// RandomIssuer mints random hex nonces and tracks their lifecycle in a
// NonceStore.
type RandomIssuer struct {
	store ports.NonceStore
	ttl   time.Duration
}

// NewRandomIssuer creates an issuer with the given challenge lifetime;
// ttl <= 0 selects DefaultTTL.
func NewRandomIssuer(store ports.NonceStore, ttl time.Duration) ports.ChallengeIssuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RandomIssuer{store: store, ttl: ttl}
}

// Issue generates a fresh 32-byte random nonce and records it.
func (i *RandomIssuer) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	if err := i.store.Save(ctx, nonce, i.ttl); err != nil {
		return "", fmt.Errorf("failed to save nonce: %w", err)
	}
	return nonce, nil
}

// Redeem consumes the nonce. False means it was never issued, has expired
// or was already used.
func (i *RandomIssuer) Redeem(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	return i.store.Consume(ctx, nonce)
}
