// Package jsonfile provides JSON file-based message and session stores.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hay-kot/blindchat/internal/core/identity"
)

// SessionStore implements identity.SessionStore using a JSON file.
type SessionStore struct {
	path string
	mu   sync.RWMutex
}

// NewSessionStore creates a session store at the given path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load returns the persisted session. Returns identity.ErrNoSession if none.
func (s *SessionStore) Load(ctx context.Context) (identity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return identity.Session{}, identity.ErrNoSession
		}
		return identity.Session{}, fmt.Errorf("read session file: %w", err)
	}

	if len(data) == 0 {
		return identity.Session{}, identity.ErrNoSession
	}

	var sess identity.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return identity.Session{}, fmt.Errorf("parse session file: %w", err)
	}

	if !sess.Identity.Valid() {
		return identity.Session{}, identity.ErrNoSession
	}

	return sess, nil
}

// Save replaces the persisted session.
func (s *SessionStore) Save(ctx context.Context, sess identity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return writeAtomic(s.path, data, 0o600)
}

// Clear removes the persisted session.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// writeAtomic writes data to path using write-to-temp-then-rename so readers
// never observe a partial file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
