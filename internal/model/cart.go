// Package model defines the domain types shared across the cart proxy:
// cart items, products, checkout state, money handling, and the error
// taxonomy used by every layer.
package model

import (
	"fmt"
	"time"
)

// IDScope tags synthesized cart item IDs with their origin.
// Server-assigned IDs (authenticated carts) carry no scope prefix.
type IDScope string

const (
	// ScopeGuest marks items created in the guest cart.
	ScopeGuest IDScope = "guest"

	// ScopeTemp marks placeholder items awaiting a server ID.
	ScopeTemp IDScope = "temp"

	// ScopeOptimistic marks items appended by the optimistic engine
	// before the backend has confirmed them.
	ScopeOptimistic IDScope = "optimistic"
)

// NewSyntheticID builds a cart item ID of the form {scope}_{productID}_{unixms}.
// The timestamp component keeps IDs unique within a single cart snapshot.
func NewSyntheticID(scope IDScope, productID int64) string {
	return fmt.Sprintf("%s_%d_%d", scope, productID, time.Now().UnixMilli())
}

// CartItem is one line of a cart. For authenticated carts the ID is
// server-assigned; for guest and optimistic items it is synthesized.
type CartItem struct {
	ID       string  `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"` // always > 0 in stored state; <= 0 is a removal signal
}

// Product is the catalog record attached to a cart item. Read-only to this
// subsystem. Guest carts persist only the ID; the remaining fields are
// filled in by enrichment reads against the product API.
type Product struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name,omitempty"`
	Price  FlexPrice `json:"price,omitempty"`
	Stock  int       `json:"stock,omitempty"`
	Images []string  `json:"images,omitempty"`
	Brand  string    `json:"brand,omitempty"`
}

// ProductStub returns a product carrying only its ID, the form guest cart
// entries take before enrichment.
func ProductStub(id int64) Product {
	return Product{ID: id}
}

// IsStub reports whether the product still awaits enrichment.
func (p Product) IsStub() bool {
	return p.Name == "" && p.Price == 0
}

// FindItem returns the index of the item with the given cart item ID, or -1.
func FindItem(items []CartItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// FindItemByProduct returns the index of the item holding the given product,
// or -1. Carts hold at most one entry per product.
func FindItemByProduct(items []CartItem, productID int64) int {
	for i := range items {
		if items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// CloneItems deep-copies a cart snapshot. The optimistic engine relies on
// this for rollback snapshots, so the copy must not share slices.
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	copy(out, items)
	for i := range out {
		if len(items[i].Product.Images) > 0 {
			out[i].Product.Images = append([]string(nil), items[i].Product.Images...)
		}
	}
	return out
}
