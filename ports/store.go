package ports

import (
	"context"
	"time"

	"github.com/ggurbet/onchainsurveys/core"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// UserStore resolves identities by wallet public key
type UserStore interface {
	// Register creates a user for the public key unless one exists.
	// created is false when the key was already registered; the stored user is returned either way.
	Register(ctx context.Context, user *core.User) (stored *core.User, created bool, err error)

	// FindByPublicKey returns core.ErrUserNotFound for unknown keys.
	FindByPublicKey(ctx context.Context, publicKey string) (*core.User, error)
}

// SessionStore holds the client-side session. Commit and Clear are all-or-nothing
// and Read never observes a partially written session.
type SessionStore interface {
	Commit(session core.Session) error
	Clear() error
	Read() (core.Session, bool)
}
