// Package cache holds the shared cart read model. Every cart-displaying
// surface reads through it, so within one staleness window they all see the
// same snapshot without separate upstream calls.
//
// Write discipline: only the optimistic engine mutates entries. Everything
// else is a read-only consumer. That convention, not a lock, is the
// system's mutual-exclusion story, so keep it.
package cache

import (
	"context"
	"errors"
	"time"

	"cart-proxy/internal/model"
)

// ErrMiss is returned when no snapshot exists for the session.
var ErrMiss = errors.New("cache miss")

// Entry is one session's cached cart snapshot.
type Entry struct {
	Items     []model.CartItem `json:"items"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Fresh reports whether the snapshot is younger than the staleness window.
func (e *Entry) Fresh(window time.Duration) bool {
	return time.Since(e.FetchedAt) < window
}

// Store is the cart snapshot cache.
type Store interface {
	// Get returns the session's snapshot or ErrMiss.
	Get(ctx context.Context, session string) (*Entry, error)

	// Set replaces the session's snapshot, stamping it as fresh.
	Set(ctx context.Context, session string, items []model.CartItem) error

	// Invalidate drops the snapshot so the next read refetches.
	Invalidate(ctx context.Context, session string) error
}
