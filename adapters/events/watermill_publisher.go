package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// DefaultTopic carries every auth event.
const DefaultTopic = "onchainsurveys.auth"

// Event types, also set as the "type" metadata key.
const (
	TypeUserRegistered = "user.registered"
	TypeUserLoggedIn   = "user.logged_in"
	TypeUserLoggedOut  = "user.logged_out"
)

// Event is the payload of every auth event
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	PublicKey  string    `json:"public_key,omitempty"`
	TokenID    string    `json:"token_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher. An empty topic selects DefaultTopic.
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishRegistered publishes a registration event
func (p *WatermillPublisher) PublishRegistered(ctx context.Context, user *core.User) error {
	return p.publish(ctx, Event{
		Type:      TypeUserRegistered,
		UserID:    user.ID,
		PublicKey: user.PublicKey,
	})
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID, publicKey string) error {
	return p.publish(ctx, Event{
		Type:      TypeUserLoggedIn,
		UserID:    userID,
		PublicKey: publicKey,
	})
}

// PublishLogout publishes a logout event so other instances can drop the token
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID, tokenID string) error {
	return p.publish(ctx, Event{
		Type:    TypeUserLoggedOut,
		UserID:  userID,
		TokenID: tokenID,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, event Event) error {
	event.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
