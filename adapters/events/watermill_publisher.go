package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/layer-3/taksu/ports"
)

const (
	TopicAuthenticated = "session.authenticated"
	TopicRejected      = "session.rejected"
)

// AuthenticatedEvent is emitted when a signature proves key control
type AuthenticatedEvent struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
}

// RejectedEvent is emitted when a verification attempt is turned down
type RejectedEvent struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishAuthenticated publishes a successful verification
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, address common.Address, nonce string) error {
	return p.publish(TopicAuthenticated, AuthenticatedEvent{
		Address: address.Hex(),
		Nonce:   nonce,
	})
}

// PublishRejected publishes a turned-down verification attempt
func (p *WatermillPublisher) PublishRejected(ctx context.Context, address string, reason string) error {
	return p.publish(TopicRejected, RejectedEvent{
		Address: address,
		Reason:  reason,
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
