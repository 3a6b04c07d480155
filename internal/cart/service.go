// Package cart implements the cart service: the single authority deciding,
// per call, whether a session's cart lives in the guest slot store or
// behind the authenticated carts API.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"cart-proxy/internal/backend"
	"cart-proxy/internal/model"
	"cart-proxy/internal/reconcile"
)

// AuthState answers the one capability question that picks a backend.
type AuthState interface {
	IsAuthenticated(session string) bool
}

// GuestBackend is the guest strategy plus the slot-clearing hook the
// login merge needs.
type GuestBackend interface {
	backend.CartBackend
	Clear(session string) error
}

// ProductFetcher supplies full product records for guest cart enrichment.
type ProductFetcher interface {
	Product(ctx context.Context, id int64) (*model.Product, error)
}

// Service routes cart operations to the right backend.
type Service struct {
	auth     AuthState
	guest    GuestBackend
	remote   backend.CartBackend
	products ProductFetcher
	logger   *slog.Logger
	sfg      singleflight.Group // collapses concurrent reads per session
}

// NewService wires the two backends behind one service.
func NewService(auth AuthState, guest GuestBackend, remote backend.CartBackend, products ProductFetcher, logger *slog.Logger) *Service {
	return &Service{
		auth:     auth,
		guest:    guest,
		remote:   remote,
		products: products,
		logger:   logger,
	}
}

// pick returns the backend owning the session's cart right now. The check
// happens per call: a login between two calls switches the route.
func (s *Service) pick(session string) backend.CartBackend {
	if s.auth.IsAuthenticated(session) {
		return s.remote
	}
	return s.guest
}

// Items returns the session's cart. Reads never fail the caller: a remote
// error degrades to an empty cart and a log line. Guest entries come back
// enriched with full product data; an enrichment miss leaves that entry's
// stub in place rather than aborting the read.
func (s *Service) Items(ctx context.Context, session string) []model.CartItem {
	v, _, _ := s.sfg.Do(session, func() (interface{}, error) {
		return s.readItems(ctx, session), nil
	})
	return v.([]model.CartItem)
}

func (s *Service) readItems(ctx context.Context, session string) []model.CartItem {
	if s.auth.IsAuthenticated(session) {
		items, err := s.remote.List(ctx, session)
		if err != nil {
			s.logger.Error("remote cart read failed, serving empty cart",
				slog.String("session", session),
				slog.String("error", err.Error()),
			)
			return []model.CartItem{}
		}
		if items == nil {
			items = []model.CartItem{}
		}
		return items
	}

	items, _ := s.guest.List(ctx, session) // guest List never errors
	return s.enrich(ctx, session, items)
}

// enrich replaces product stubs with full catalog records, item by item.
// Partial failure isolation: one product fetch failing must not cost the
// shopper the rest of the cart.
func (s *Service) enrich(ctx context.Context, session string, items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, 0, len(items))
	for _, item := range items {
		if item.Product.IsStub() {
			p, err := s.products.Product(ctx, item.Product.ID)
			if err != nil {
				s.logger.Warn("product enrichment failed, keeping stub",
					slog.String("session", session),
					slog.Int64("product_id", item.Product.ID),
					slog.String("error", err.Error()),
				)
			} else {
				item.Product = *p
			}
		}
		out = append(out, item)
	}
	return out
}

// Add puts the product in whichever cart owns the session. Write errors
// propagate; the optimistic engine needs them to roll back.
func (s *Service) Add(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error) {
	return s.pick(session).Add(ctx, session, productID, quantity)
}

// UpdateQuantity sets an item's quantity; <= 0 removes it.
func (s *Service) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error) {
	return s.pick(session).UpdateQuantity(ctx, session, itemID, quantity)
}

// Remove deletes an item.
func (s *Service) Remove(ctx context.Context, session, itemID string) error {
	return s.pick(session).Remove(ctx, session, itemID)
}

// MergeOnLogin folds the guest cart into the freshly authenticated remote
// cart, then clears the guest slot. Called once right after a successful
// login. On any upstream failure the guest slot is left intact so a later
// login can retry; replaying the plan is safe because bumps set absolute
// quantities and the plan is recomputed from live state each time.
func (s *Service) MergeOnLogin(ctx context.Context, session string) error {
	if !s.auth.IsAuthenticated(session) {
		return model.NewUnauthorizedError("merge requires an authenticated session")
	}

	guestItems, _ := s.guest.List(ctx, session)
	if len(guestItems) == 0 {
		return nil
	}

	remoteItems, err := s.remote.List(ctx, session)
	if err != nil {
		return fmt.Errorf("reading remote cart for merge: %w", err)
	}

	plan := reconcile.PlanMerge(remoteItems, guestItems)
	for _, bump := range plan.ToBump {
		if _, err := s.remote.UpdateQuantity(ctx, session, bump.ItemID, bump.NewQuantity); err != nil {
			return fmt.Errorf("merging product %d: %w", bump.ProductID, err)
		}
	}
	for _, add := range plan.ToAdd {
		if _, err := s.remote.Add(ctx, session, add.ProductID, add.Quantity); err != nil {
			return fmt.Errorf("merging product %d: %w", add.ProductID, err)
		}
	}

	if err := s.guest.Clear(session); err != nil {
		return fmt.Errorf("clearing guest cart after merge: %w", err)
	}

	s.logger.Info("guest cart merged into account",
		slog.String("session", session),
		slog.Int("added", len(plan.ToAdd)),
		slog.Int("bumped", len(plan.ToBump)),
	)
	return nil
}
