package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys in use across the client. Each piece of durable state
// gets its own key so teardown can clear them independently.
const (
	KeyCart    = "cart"
	KeySession = "session"
)

// Local is a durable key/value store backed by one JSON file per key.
// It plays the role browser local storage plays for a web client:
// small per-device state that must survive a restart.
type Local struct {
	mu  sync.Mutex
	dir string
}

// NewLocal opens (creating if needed) a storage directory.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Get unmarshals the value stored under key into v. The second return
// reports whether the key exists at all.
func (l *Local) Get(key string, v any) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return true, nil
}

// Put marshals v and durably replaces the value under key. The write
// goes through a temp file and rename so a crash never leaves a
// half-written value behind.
func (l *Local) Put(key string, v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}

	tmp := l.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := os.Rename(tmp, l.path(key)); err != nil {
		return fmt.Errorf("failed to commit %q: %w", key, err)
	}
	return nil
}

// Delete removes the value under key. Deleting an absent key is not an error.
func (l *Local) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Remove(l.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (l *Local) path(key string) string {
	return filepath.Join(l.dir, key+".json")
}
