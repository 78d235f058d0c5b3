package store

import (
	"context"
	"sync"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// MemoryUserStore keeps registered users in memory, keyed by public key
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]core.User
}

// NewMemoryUserStore creates an empty user registry
func NewMemoryUserStore() ports.UserStore {
	return &MemoryUserStore{users: make(map[string]core.User)}
}

// Register stores user unless its public key is already known, in which case the
// existing record is returned with created=false
func (s *MemoryUserStore) Register(ctx context.Context, user *core.User) (*core.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.PublicKey]; ok {
		return &existing, false, nil
	}

	s.users[user.PublicKey] = *user
	stored := *user
	return &stored, true, nil
}

// FindByPublicKey returns the user registered for publicKey
func (s *MemoryUserStore) FindByPublicKey(ctx context.Context, publicKey string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[publicKey]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return &user, nil
}
