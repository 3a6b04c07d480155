package remotecart

import (
	"context"
	"errors"
	"testing"

	"cart-proxy/internal/model"
)

type fakeAPI struct {
	ListCartFunc       func(ctx context.Context, token string) ([]model.CartItem, error)
	AddCartItemFunc    func(ctx context.Context, token string, productID int64, quantity int) (*model.CartItem, error)
	UpdateCartItemFunc func(ctx context.Context, token, itemID string, quantity int) (*model.CartItem, error)
	DeleteCartItemFunc func(ctx context.Context, token, itemID string) error
}

func (f *fakeAPI) ListCart(ctx context.Context, token string) ([]model.CartItem, error) {
	return f.ListCartFunc(ctx, token)
}
func (f *fakeAPI) AddCartItem(ctx context.Context, token string, productID int64, quantity int) (*model.CartItem, error) {
	return f.AddCartItemFunc(ctx, token, productID, quantity)
}
func (f *fakeAPI) UpdateCartItem(ctx context.Context, token, itemID string, quantity int) (*model.CartItem, error) {
	return f.UpdateCartItemFunc(ctx, token, itemID, quantity)
}
func (f *fakeAPI) DeleteCartItem(ctx context.Context, token, itemID string) error {
	return f.DeleteCartItemFunc(ctx, token, itemID)
}

type staticTokens string

func (s staticTokens) AccessToken(session string) string { return string(s) }

func TestList_PassesToken(t *testing.T) {
	api := &fakeAPI{
		ListCartFunc: func(ctx context.Context, token string) ([]model.CartItem, error) {
			if token != "tok-1" {
				t.Errorf("token = %q, want tok-1", token)
			}
			return []model.CartItem{{ID: "5", Quantity: 1}}, nil
		},
	}
	b := New(api, staticTokens("tok-1"))

	items, err := b.List(context.Background(), "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != "5" {
		t.Errorf("items = %+v", items)
	}
}

func TestNoToken_Unauthorized(t *testing.T) {
	b := New(&fakeAPI{}, staticTokens(""))

	_, err := b.List(context.Background(), "s1")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("List without token = %v, want ErrUnauthorized", err)
	}
}

func TestUpdateQuantity_ZeroBecomesDelete(t *testing.T) {
	deleted := false
	api := &fakeAPI{
		DeleteCartItemFunc: func(ctx context.Context, token, itemID string) error {
			if itemID != "5" {
				t.Errorf("itemID = %q, want 5", itemID)
			}
			deleted = true
			return nil
		},
		UpdateCartItemFunc: func(ctx context.Context, token, itemID string, quantity int) (*model.CartItem, error) {
			t.Error("PATCH should not be used for quantity 0")
			return nil, nil
		},
	}
	b := New(api, staticTokens("tok"))

	item, err := b.UpdateQuantity(context.Background(), "s1", "5", 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if item != nil {
		t.Errorf("item = %+v, want nil after removal", item)
	}
	if !deleted {
		t.Error("DELETE was never called")
	}
}

func TestAdd_RejectsNonPositiveQuantity(t *testing.T) {
	b := New(&fakeAPI{}, staticTokens("tok"))
	if _, err := b.Add(context.Background(), "s1", 101, -1); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("Add(-1) = %v, want validation error", err)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	api := &fakeAPI{
		ListCartFunc: func(ctx context.Context, token string) ([]model.CartItem, error) {
			return nil, errors.New("connection refused")
		},
	}
	b := New(api, staticTokens("tok"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := b.List(ctx, "s1"); err == nil {
			t.Fatal("List should fail")
		}
	}

	// Circuit is now open: the upstream is no longer called and the error
	// maps into the upstream taxonomy.
	api.ListCartFunc = func(ctx context.Context, token string) ([]model.CartItem, error) {
		t.Error("upstream called while circuit open")
		return nil, nil
	}
	_, err := b.List(ctx, "s1")
	if !errors.Is(err, model.ErrUpstreamError) {
		t.Errorf("open-circuit error = %v, want ErrUpstreamError", err)
	}
}
