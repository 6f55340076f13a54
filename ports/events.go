package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// EventPublisher publishes authentication outcomes to notify other services
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, address common.Address, nonce string) error
	PublishRejected(ctx context.Context, address string, reason string) error
}
