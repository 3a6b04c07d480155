package cache

import (
	"context"
	"sync"
	"time"

	"cart-proxy/internal/model"
)

// Memory is the in-process Store, the default for single-replica
// deployments. Snapshots are deep-copied on the way in and out so callers
// can never alias the cached slice.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

// Get returns a copy of the session's snapshot or ErrMiss.
func (m *Memory) Get(ctx context.Context, session string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[session]
	if !ok {
		return nil, ErrMiss
	}
	return &Entry{Items: model.CloneItems(e.Items), FetchedAt: e.FetchedAt}, nil
}

// Set replaces the session's snapshot.
func (m *Memory) Set(ctx context.Context, session string, items []model.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[session] = &Entry{
		Items:     model.CloneItems(items),
		FetchedAt: time.Now(),
	}
	return nil
}

// Invalidate drops the snapshot.
func (m *Memory) Invalidate(ctx context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, session)
	return nil
}

var _ Store = (*Memory)(nil)
