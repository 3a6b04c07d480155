// Package guestcart implements the cart backend for unauthenticated
// shoppers. The cart lives in the session's guest_cart slot as a JSON array
// of items whose products are ID-only stubs; enrichment with full product
// data happens at the cart service layer.
package guestcart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cart-proxy/internal/backend"
	"cart-proxy/internal/model"
	"cart-proxy/internal/storage"
)

// Backend stores guest carts in the durable slot store.
type Backend struct {
	store  *storage.Store
	logger *slog.Logger
}

// New returns a guest cart backend over the given slot store.
func New(store *storage.Store, logger *slog.Logger) *Backend {
	return &Backend{store: store, logger: logger}
}

// List returns the guest cart. A missing or corrupt slot reads as an empty
// cart; corruption is logged, never surfaced.
func (b *Backend) List(ctx context.Context, session string) ([]model.CartItem, error) {
	return b.load(session), nil
}

// Add merges quantity units of the product into the cart. If the product is
// already present its quantity is bumped; otherwise a new entry with a
// synthesized guest ID is appended. The invariant: one entry per product.
func (b *Backend) Add(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, model.NewValidationError("quantity", "must be positive")
	}

	items := b.load(session)

	var item *model.CartItem
	if i := model.FindItemByProduct(items, productID); i >= 0 {
		items[i].Quantity += quantity
		item = &items[i]
	} else {
		items = append(items, model.CartItem{
			ID:       model.NewSyntheticID(model.ScopeGuest, productID),
			Product:  model.ProductStub(productID),
			Quantity: quantity,
		})
		item = &items[len(items)-1]
	}

	if err := b.save(session, items); err != nil {
		return nil, err
	}
	out := *item
	return &out, nil
}

// UpdateQuantity sets an item's quantity in place. Quantity <= 0 deletes the
// entry and returns nil, per the removal-signal convention.
func (b *Backend) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error) {
	items := b.load(session)

	i := model.FindItem(items, itemID)
	if i < 0 {
		return nil, model.NewNotFoundError("cart item")
	}

	if quantity <= 0 {
		items = append(items[:i], items[i+1:]...)
		if err := b.save(session, items); err != nil {
			return nil, err
		}
		return nil, nil
	}

	items[i].Quantity = quantity
	if err := b.save(session, items); err != nil {
		return nil, err
	}
	out := items[i]
	return &out, nil
}

// Remove filters the item out. Removing an absent item succeeds; the guest
// path never reports a missing entry.
func (b *Backend) Remove(ctx context.Context, session, itemID string) error {
	items := b.load(session)

	kept := items[:0]
	for _, it := range items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	return b.save(session, kept)
}

// Clear drops the whole guest cart. Called after a successful merge into an
// authenticated cart.
func (b *Backend) Clear(session string) error {
	return b.store.Delete(session, storage.SlotGuestCart)
}

// load reads the slot, degrading missing and corrupt content to an empty
// cart.
func (b *Backend) load(session string) []model.CartItem {
	var items []model.CartItem
	err := b.store.Read(session, storage.SlotGuestCart, &items)
	switch {
	case err == nil:
		return items
	case errors.Is(err, storage.ErrNoSlot):
		return nil
	default:
		b.logger.Warn("guest cart unreadable, starting empty",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
		return nil
	}
}

func (b *Backend) save(session string, items []model.CartItem) error {
	if items == nil {
		items = []model.CartItem{}
	}
	if err := b.store.Write(session, storage.SlotGuestCart, items); err != nil {
		return fmt.Errorf("saving guest cart: %w", err)
	}
	return nil
}

// Verify Backend implements the strategy interface at compile time.
var _ backend.CartBackend = (*Backend)(nil)
