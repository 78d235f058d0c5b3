package ports

import (
	"context"

	"github.com/ggurbet/onchainsurveys/core"
)

// EventPublisher publishes auth events to notify other instances
type EventPublisher interface {
	PublishRegistered(ctx context.Context, user *core.User) error
	PublishLogin(ctx context.Context, userID, publicKey string) error
	PublishLogout(ctx context.Context, userID, tokenID string) error
}
