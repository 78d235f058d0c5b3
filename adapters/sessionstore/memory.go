// Package sessionstore holds the client-side session: the token, user id, active key,
// registration flag and last provided signature, always written and cleared as one unit.
package sessionstore

import (
	"fmt"
	"sync"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session *core.Session
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ ports.SessionStore = (*MemoryStore)(nil)

// Commit replaces the stored session as a whole.
func (s *MemoryStore) Commit(session core.Session) error {
	if !session.Complete() {
		return fmt.Errorf("commit incomplete session: %w", core.ErrStoreOperationFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &session
	return nil
}

// Clear removes every field, including the registration flag.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}

// Read returns a copy of the stored session.
func (s *MemoryStore) Read() (core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return core.Session{}, false
	}
	return *s.session, true
}
