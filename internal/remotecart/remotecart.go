// Package remotecart implements the cart backend for authenticated
// shoppers, delegating to the upstream carts API with the session's bearer
// token. Calls run through a circuit breaker so a dead upstream fails fast
// instead of stacking 30-second timeouts.
package remotecart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"cart-proxy/internal/backend"
	"cart-proxy/internal/model"
)

// API is the slice of the store client this backend needs.
type API interface {
	ListCart(ctx context.Context, token string) ([]model.CartItem, error)
	AddCartItem(ctx context.Context, token string, productID int64, quantity int) (*model.CartItem, error)
	UpdateCartItem(ctx context.Context, token, itemID string, quantity int) (*model.CartItem, error)
	DeleteCartItem(ctx context.Context, token, itemID string) error
}

// TokenSource resolves a session to its access token.
type TokenSource interface {
	AccessToken(session string) string
}

// Backend is the authenticated cart backend.
type Backend struct {
	api     API
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[any]
}

// New returns a remote backend over the given API client.
func New(api API, tokens TokenSource) *Backend {
	settings := gobreaker.Settings{
		Name:    "carts-api",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Backend{
		api:     api,
		tokens:  tokens,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// List fetches the authenticated cart.
func (b *Backend) List(ctx context.Context, session string) ([]model.CartItem, error) {
	token, err := b.token(session)
	if err != nil {
		return nil, err
	}

	v, err := b.execute(func() (any, error) {
		return b.api.ListCart(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.CartItem), nil
}

// Add posts the product to the cart.
func (b *Backend) Add(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, model.NewValidationError("quantity", "must be positive")
	}
	token, err := b.token(session)
	if err != nil {
		return nil, err
	}

	v, err := b.execute(func() (any, error) {
		return b.api.AddCartItem(ctx, token, productID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.CartItem), nil
}

// UpdateQuantity patches the item's quantity. A quantity <= 0 is the
// removal signal and becomes a DELETE upstream.
func (b *Backend) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error) {
	token, err := b.token(session)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		_, err := b.execute(func() (any, error) {
			return nil, b.api.DeleteCartItem(ctx, token, itemID)
		})
		return nil, err
	}

	v, err := b.execute(func() (any, error) {
		return b.api.UpdateCartItem(ctx, token, itemID, quantity)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.CartItem), nil
}

// Remove deletes the item upstream. Unlike the guest backend, a missing
// item surfaces as the API's 404.
func (b *Backend) Remove(ctx context.Context, session, itemID string) error {
	token, err := b.token(session)
	if err != nil {
		return err
	}

	_, err = b.execute(func() (any, error) {
		return nil, b.api.DeleteCartItem(ctx, token, itemID)
	})
	return err
}

func (b *Backend) token(session string) (string, error) {
	token := b.tokens.AccessToken(session)
	if token == "" {
		return "", model.NewUnauthorizedError("session has no access token")
	}
	return token, nil
}

// execute routes the call through the breaker, translating open-circuit
// rejections into upstream errors.
func (b *Backend) execute(fn func() (any, error)) (any, error) {
	v, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, model.NewUpstreamError("carts API", fmt.Errorf("circuit open: %w", err))
	}
	return v, err
}

// Verify Backend implements the strategy interface at compile time.
var _ backend.CartBackend = (*Backend)(nil)
