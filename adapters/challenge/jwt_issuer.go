package challenge

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
)

const AudienceChallenge = "session:challenge"

// JWTIssuer mints challenges as ES256 JWTs that carry their own nonce and
// expiry. Clients still treat them as opaque strings. Single use is enforced
// through the NonceStore, keyed by the token id.
type JWTIssuer struct {
	signKey *ecdsa.PrivateKey
	store   ports.NonceStore
	ttl     time.Duration
}

// NewJWTIssuer creates a JWT challenge issuer; ttl <= 0 selects DefaultTTL.
func NewJWTIssuer(signKey *ecdsa.PrivateKey, store ports.NonceStore, ttl time.Duration) ports.ChallengeIssuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTIssuer{signKey: signKey, store: store, ttl: ttl}
}

// Issue mints a signed challenge token and records its id.
func (i *JWTIssuer) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	ch := core.Challenge{
		ID:        uuid.New().String(),
		Nonce:     hex.EncodeToString(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ch.ID,
			ExpiresAt: jwt.NewNumericDate(ch.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(ch.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceChallenge},
		},
		Nonce: ch.Nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(i.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge: %w", err)
	}

	if err := i.store.Save(ctx, ch.ID, i.ttl); err != nil {
		return "", fmt.Errorf("failed to save challenge id: %w", err)
	}
	return signed, nil
}

// Redeem validates the token and consumes its id. Any validation failure,
// including expiry and a wrong audience, is a false verdict rather than an
// error.
func (i *JWTIssuer) Redeem(ctx context.Context, tokenStr string) (bool, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ChallengeClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &i.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceChallenge))
	if err != nil || !token.Valid {
		return false, nil
	}

	claims, ok := token.Claims.(*ChallengeClaims)
	if !ok || claims.ID == "" {
		return false, nil
	}

	return i.store.Consume(ctx, claims.ID)
}
