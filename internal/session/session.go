// Package session resolves a shopper session's authentication state from
// the durable slot store. Presence of a usable access token is the single
// capability check that routes cart traffic to the remote backend instead
// of the guest one.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"cart-proxy/internal/model"
	"cart-proxy/internal/storage"
)

// Tokens is the pair issued by the OAuth endpoint.
type Tokens struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token,omitempty"`
}

// Manager reads and writes the token slot.
type Manager struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewManager returns a Manager over the given slot store.
func NewManager(store *storage.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// AccessToken returns the session's access token, or "" when the session is
// unauthenticated. Corrupt slots are logged and treated as absent. Tokens
// that are the literal strings "null" or "undefined" are treated as absent;
// storefront clients have historically written stringified JS nulls into
// the token slot.
func (m *Manager) AccessToken(session string) string {
	var t Tokens
	err := m.store.Read(session, storage.SlotAccessToken, &t)
	if errors.Is(err, storage.ErrNoSlot) {
		return ""
	}
	if err != nil {
		m.logger.Warn("token slot unreadable, treating as logged out",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
		return ""
	}

	switch t.Access {
	case "", "null", "undefined":
		return ""
	}
	return t.Access
}

// IsAuthenticated reports whether the session holds a usable access token.
func (m *Manager) IsAuthenticated(session string) bool {
	return m.AccessToken(session) != ""
}

// SetTokens stores the token pair after a successful login.
func (m *Manager) SetTokens(session string, t Tokens) error {
	if t.Access == "" {
		return model.NewValidationError("access_token", "must not be empty")
	}
	if err := m.store.Write(session, storage.SlotAccessToken, t); err != nil {
		return fmt.Errorf("storing tokens: %w", err)
	}
	return nil
}

// Clear drops the token slot on logout.
func (m *Manager) Clear(session string) error {
	return m.store.Delete(session, storage.SlotAccessToken)
}
