// Package backend defines the strategy interface for cart persistence.
// Two implementations exist: the guest backend over the durable slot store
// and the remote backend over the authenticated carts API. The cart service
// selects one per call based on the session's auth state.
package backend

import (
	"context"

	"cart-proxy/internal/model"
)

// CartBackend abstracts where a session's cart lives.
//
// Contract shared by both implementations:
//   - Add merges by product: adding a product already in the cart bumps its
//     quantity instead of appending a second entry.
//   - UpdateQuantity with quantity <= 0 removes the item and returns nil.
//   - Remove of an item is idempotent for the guest backend; the remote
//     backend surfaces the API's 404.
type CartBackend interface {
	// List returns the cart snapshot for the session.
	List(ctx context.Context, session string) ([]model.CartItem, error)

	// Add puts quantity units of the product into the cart and returns the
	// resulting item.
	Add(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error)

	// UpdateQuantity sets an item's quantity, removing it at <= 0.
	// Returns the updated item, or nil when the update removed it.
	UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error)

	// Remove deletes an item from the cart.
	Remove(ctx context.Context, session, itemID string) error
}
