package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"cart-proxy/internal/model"
)

// Redis is the shared Store for multi-replica deployments: every proxy
// replica serving the same shopper sees one snapshot. Entries expire a
// little after the staleness window with jitter, so a thundering herd of
// sessions never refetches at once.
type Redis struct {
	client *redis.Client
	window time.Duration
}

// NewRedis returns a Store over the given client. window should match the
// engine's staleness window; it bounds the key TTL.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	return &Redis{client: client, window: window}
}

// Get returns the session's snapshot or ErrMiss.
func (r *Redis) Get(ctx context.Context, session string) (*Entry, error) {
	data, err := r.client.Get(ctx, cacheKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot failed: %w", err)
	}
	return &e, nil
}

// Set replaces the session's snapshot.
func (r *Redis) Set(ctx context.Context, session string, items []model.CartItem) error {
	e := Entry{Items: items, FetchedAt: time.Now()}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	ttl := r.window + jitter
	if err := r.client.Set(ctx, cacheKey(session), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot.
func (r *Redis) Invalidate(ctx context.Context, session string) error {
	if err := r.client.Del(ctx, cacheKey(session)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(session string) string {
	return "cart:view:" + session
}

var _ Store = (*Redis)(nil)
