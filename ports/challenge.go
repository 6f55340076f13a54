package ports

import "context"

// ChallengeIssuer mints opaque login nonces and redeems each at most once
type ChallengeIssuer interface {
	Issue(ctx context.Context) (string, error)
	// Redeem consumes the nonce. False means unknown, expired or reused.
	Redeem(ctx context.Context, nonce string) (bool, error)
}
