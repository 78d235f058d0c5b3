package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// Persisted keys. Consumers outside the session core read them; only FileStore writes them.
const (
	KeyToken             = "token"
	KeyUserID            = "userId"
	KeyActivePublicKey   = "active_public_key"
	KeyUserAlreadySigned = "user_already_signed"
	KeyProvidedSignature = "x_casper_provided_signature"
)

// FileStore persists the session as a flat key/value JSON document.
// Writes go to a temporary file renamed over the target, so a reader sees either
// the previous document or the new one.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a store backed by path. The directory is created on first commit.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

var _ ports.SessionStore = (*FileStore)(nil)

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Commit writes every key of session in one rename.
func (s *FileStore) Commit(session core.Session) error {
	if !session.Complete() {
		return fmt.Errorf("commit incomplete session: %w", core.ErrStoreOperationFailed)
	}

	doc := map[string]string{
		KeyToken:             session.Token,
		KeyUserID:            session.UserID,
		KeyActivePublicKey:   session.ActivePublicKeyHex,
		KeyUserAlreadySigned: strconv.FormatBool(session.AlreadyRegistered),
		KeyProvidedSignature: session.ProvidedSignature,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session: %w", err)
	}

	return nil
}

// Clear deletes the whole document.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Read loads the session. A missing, unreadable or partial document reads as absent.
func (s *FileStore) Read() (core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return core.Session{}, false
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Session{}, false
	}

	session := core.Session{
		Token:              doc[KeyToken],
		UserID:             doc[KeyUserID],
		ActivePublicKeyHex: doc[KeyActivePublicKey],
		AlreadyRegistered:  doc[KeyUserAlreadySigned] == "true",
		ProvidedSignature:  doc[KeyProvidedSignature],
	}
	if !session.Complete() {
		return core.Session{}, false
	}

	return session, true
}
