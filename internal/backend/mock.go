package backend

import (
	"context"

	"cart-proxy/internal/model"
)

// Mock implements CartBackend for testing.
// Each method can be configured via function fields.
type Mock struct {
	ListFunc           func(ctx context.Context, session string) ([]model.CartItem, error)
	AddFunc            func(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error)
	UpdateQuantityFunc func(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error)
	RemoveFunc         func(ctx context.Context, session, itemID string) error
}

// List calls the configured ListFunc or returns an empty cart.
func (m *Mock) List(ctx context.Context, session string) ([]model.CartItem, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, session)
	}
	return []model.CartItem{}, nil
}

// Add calls the configured AddFunc or returns a synthesized item.
func (m *Mock) Add(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, session, productID, quantity)
	}
	return &model.CartItem{
		ID:       model.NewSyntheticID(model.ScopeTemp, productID),
		Product:  model.ProductStub(productID),
		Quantity: quantity,
	}, nil
}

// UpdateQuantity calls the configured UpdateQuantityFunc or returns an error.
func (m *Mock) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error) {
	if m.UpdateQuantityFunc != nil {
		return m.UpdateQuantityFunc(ctx, session, itemID, quantity)
	}
	return nil, model.NewNotFoundError("cart item")
}

// Remove calls the configured RemoveFunc or returns an error.
func (m *Mock) Remove(ctx context.Context, session, itemID string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, session, itemID)
	}
	return model.NewNotFoundError("cart item")
}

// Verify Mock implements CartBackend at compile time.
var _ CartBackend = (*Mock)(nil)
