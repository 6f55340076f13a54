package ports

import (
	"context"
	"time"
)

// NonceStore interface for single-use nonce tracking
type NonceStore interface {
	Save(ctx context.Context, nonce string, ttl time.Duration) error
	// Consume atomically marks the nonce used. False means unknown,
	// expired or already consumed.
	Consume(ctx context.Context, nonce string) (bool, error)
}
