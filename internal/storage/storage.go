// Package storage implements the durable slot store: per-session named JSON
// slots persisted on disk. It is the server-side analog of the browser's
// localStorage, holding exactly the two keys the storefront relied on there:
// the guest cart and the access token.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cart-proxy/internal/model"
)

// Well-known slot names.
const (
	SlotGuestCart   = "guest_cart"
	SlotAccessToken = "access_token"
)

// ErrNoSlot is returned when a slot has never been written (or was deleted).
// Distinct from model.ErrCorruptSlot, which signals unreadable content.
var ErrNoSlot = errors.New("slot not set")

// Store persists slots as one JSON file per (session, slot) pair under a
// data directory. Writes are atomic: content lands in a temp file first and
// is renamed into place, so a crash never leaves a half-written slot.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the data directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("storage: data directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: creating data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Read unmarshals the slot content into v.
// Missing slot → ErrNoSlot. Unparsable JSON → wrapped model.ErrCorruptSlot,
// so callers can degrade to an empty value instead of crashing.
func (s *Store) Read(session, slot string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(session, slot))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoSlot
	}
	if err != nil {
		return fmt.Errorf("storage: reading slot %s: %w", slot, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: slot %s: %w: %v", slot, model.ErrCorruptSlot, err)
	}
	return nil
}

// Write marshals v into the slot atomically.
func (s *Store) Write(session, slot string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshaling slot %s: %w", slot, err)
	}

	target := s.path(session, slot)
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("storage: creating session dir: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("storage: writing slot %s: %w", slot, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("storage: committing slot %s: %w", slot, err)
	}
	return nil
}

// Delete removes the slot. Deleting an absent slot is not an error.
func (s *Store) Delete(session, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(session, slot))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: deleting slot %s: %w", slot, err)
	}
	return nil
}

// path maps (session, slot) to a file under the data dir. Session IDs come
// from client cookies, so they are sanitized before touching the filesystem.
func (s *Store) path(session, slot string) string {
	return filepath.Join(s.dir, sanitize(session), sanitize(slot)+".json")
}

// sanitize keeps alphanumerics, dash and underscore; anything else becomes
// a dash. Prevents path traversal via hostile session IDs.
func sanitize(name string) string {
	if name == "" {
		return "-"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
