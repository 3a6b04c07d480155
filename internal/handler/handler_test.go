package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cart-proxy/internal/cache"
	"cart-proxy/internal/cart"
	"cart-proxy/internal/checkout"
	"cart-proxy/internal/guestcart"
	"cart-proxy/internal/middleware"
	"cart-proxy/internal/model"
	"cart-proxy/internal/optimistic"
	"cart-proxy/internal/remotecart"
	"cart-proxy/internal/session"
	"cart-proxy/internal/storage"
	"cart-proxy/internal/storeapi"
)

// upstream is a minimal in-memory retail API: carts keyed by bearer token,
// a tiny product catalog, and an oauth endpoint issuing one fixed token.
type upstream struct {
	mu    sync.Mutex
	carts map[string][]model.CartItem // token -> items
	next  int
}

const testToken = "token-abc"

func newUpstream() *upstream {
	return &upstream{carts: map[string][]model.CartItem{}}
}

func (u *upstream) catalog(id int64) *model.Product {
	switch id {
	case 1:
		return &model.Product{ID: 1, Name: "Azul", Price: 2999, Stock: 5}
	case 2:
		return &model.Product{ID: 2, Name: "Root", Price: 5999, Stock: 3}
	}
	return nil
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users/oauth/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  testToken,
			"refresh_token": "refresh-abc",
			"user":          map[string]string{"email": "ada@example.com"},
		})
	})

	mux.HandleFunc("GET /products/{id}/", func(w http.ResponseWriter, r *http.Request) {
		var id int64
		fmt.Sscanf(r.PathValue("id"), "%d", &id)
		p := u.catalog(id)
		if p == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "not found"})
			return
		}
		json.NewEncoder(w).Encode(p)
	})

	mux.HandleFunc("GET /products/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []*model.Product{u.catalog(1), u.catalog(2)},
			"count":   2,
		})
	})

	mux.HandleFunc("GET /carts/", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		items := u.carts[bearer(r)]
		if items == nil {
			items = []model.CartItem{}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": items, "count": len(items)})
	})

	mux.HandleFunc("POST /carts/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Product  int64 `json:"product"`
			Quantity int   `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		u.mu.Lock()
		defer u.mu.Unlock()
		u.next++
		item := model.CartItem{
			ID:       fmt.Sprintf("srv-%d", u.next),
			Product:  *u.catalog(req.Product),
			Quantity: req.Quantity,
		}
		tok := bearer(r)
		u.carts[tok] = append(u.carts[tok], item)
		json.NewEncoder(w).Encode(item)
	})

	mux.HandleFunc("PATCH /carts/{id}/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Quantity int `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		u.mu.Lock()
		defer u.mu.Unlock()
		items := u.carts[bearer(r)]
		for i := range items {
			if items[i].ID == r.PathValue("id") {
				items[i].Quantity = req.Quantity
				json.NewEncoder(w).Encode(items[i])
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("DELETE /carts/{id}/", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		tok := bearer(r)
		out := u.carts[tok][:0]
		for _, item := range u.carts[tok] {
			if item.ID != r.PathValue("id") {
				out = append(out, item)
			}
		}
		u.carts[tok] = out
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// testProxy is a fully wired proxy over a fake upstream, driven through a
// cookie-jar client so session routing works like a browser.
type testProxy struct {
	server *httptest.Server
	client *http.Client
	engine *optimistic.Engine
}

func newTestProxy(t *testing.T) *testProxy {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	up := httptest.NewServer(newUpstream().handler())
	t.Cleanup(up.Close)

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sessions := session.NewManager(store, logger)
	api := storeapi.NewClient(up.URL, false)
	guest := guestcart.New(store, logger)
	remote := remotecart.New(api, sessions)
	svc := cart.NewService(sessions, guest, remote, api, logger)

	engine := optimistic.New(svc, cache.NewMemory(), optimistic.Options{
		AddDelay:    10 * time.Millisecond,
		UpdateDelay: 10 * time.Millisecond,
		Staleness:   5 * time.Minute,
	}, logger)
	t.Cleanup(engine.Close)

	checkoutStore := checkout.NewStore(time.Hour)
	t.Cleanup(checkoutStore.Close)

	delivery := []model.DeliveryOption{
		{ID: "standard", Name: "Standard", Price: 499},
		{ID: "express", Name: "Express", Price: 999},
	}

	h := New(engine, svc, sessions, api, checkoutStore, delivery, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	proxy := httptest.NewServer(middleware.Session()(mux))
	t.Cleanup(proxy.Close)

	jar, _ := cookiejar.New(nil)
	return &testProxy{
		server: proxy,
		client: &http.Client{Jar: jar},
		engine: engine,
	}
}

func (p *testProxy) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, p.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (p *testProxy) cart(t *testing.T) cartResponse {
	t.Helper()
	resp, data := p.do(t, "GET", "/cart", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /cart = %d: %s", resp.StatusCode, data)
	}
	var out cartResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	return out
}

func TestGuestAddShowsInCart(t *testing.T) {
	p := newTestProxy(t)

	resp, data := p.do(t, "POST", "/cart/items", addItemRequest{ProductID: 1, Quantity: 2})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /cart/items = %d: %s", resp.StatusCode, data)
	}

	// The optimistic view carries the item before any commit.
	var view cartResponse
	json.Unmarshal(data, &view)
	if len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("optimistic view = %+v", view)
	}

	// After the debounce commit the item is enriched from the catalog.
	time.Sleep(100 * time.Millisecond)
	got := p.cart(t)
	if len(got.Items) != 1 || got.Items[0].Product.Name != "Azul" {
		t.Fatalf("committed cart = %+v", got)
	}
	if got.Subtotal != 5998 {
		t.Errorf("subtotal = %v, want 5998", got.Subtotal)
	}
}

func TestAddRejectsBadProduct(t *testing.T) {
	p := newTestProxy(t)

	resp, data := p.do(t, "POST", "/cart/items", addItemRequest{ProductID: 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var errResp errorResponse
	json.Unmarshal(data, &errResp)
	if errResp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", errResp.Error.Code)
	}
}

func TestLoginMergesGuestCart(t *testing.T) {
	p := newTestProxy(t)

	// Build a guest cart and let it commit.
	p.do(t, "POST", "/cart/items", addItemRequest{ProductID: 1, Quantity: 2})
	time.Sleep(100 * time.Millisecond)

	resp, data := p.do(t, "POST", "/auth/login", loginRequest{
		Provider:    "google",
		AccessToken: "provider-token",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d: %s", resp.StatusCode, data)
	}

	var login loginResponse
	json.Unmarshal(data, &login)
	if !login.Authenticated {
		t.Fatal("login response not authenticated")
	}

	// The merged cart now lives upstream, with server IDs and real prices.
	got := p.cart(t)
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("merged cart = %+v", got)
	}
	if got.Items[0].Product.Name != "Azul" {
		t.Errorf("merged item = %+v", got.Items[0])
	}

	// Auth state reflects the stored token.
	_, stateData := p.do(t, "GET", "/auth/state", nil)
	var state map[string]bool
	json.Unmarshal(stateData, &state)
	if !state["authenticated"] {
		t.Error("auth state should be authenticated after login")
	}
}

func TestLogoutDropsTokens(t *testing.T) {
	p := newTestProxy(t)

	p.do(t, "POST", "/auth/login", loginRequest{Provider: "google", AccessToken: "x"})
	p.do(t, "POST", "/auth/logout", nil)

	_, stateData := p.do(t, "GET", "/auth/state", nil)
	var state map[string]bool
	json.Unmarshal(stateData, &state)
	if state["authenticated"] {
		t.Error("still authenticated after logout")
	}
}

func TestCheckoutFlow(t *testing.T) {
	p := newTestProxy(t)

	p.do(t, "POST", "/cart/items", addItemRequest{ProductID: 2, Quantity: 1})
	time.Sleep(100 * time.Millisecond)

	resp, _ := p.do(t, "PUT", "/checkout/form", model.CheckoutForm{Name: "Ada", City: "Oslo"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT form = %d", resp.StatusCode)
	}

	// Unknown delivery option is rejected.
	resp, _ = p.do(t, "PUT", "/checkout/delivery", deliveryRequest{ID: "teleport"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown delivery = %d, want 400", resp.StatusCode)
	}

	resp, _ = p.do(t, "PUT", "/checkout/delivery", deliveryRequest{ID: "express"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT delivery = %d", resp.StatusCode)
	}

	_, data := p.do(t, "GET", "/checkout/summary", nil)
	var sum model.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if sum.Form.Name != "Ada" {
		t.Errorf("summary form = %+v", sum.Form)
	}
	if sum.Subtotal != 5999 || sum.Total != 6998 {
		t.Errorf("subtotal=%v total=%v, want 5999/6998", sum.Subtotal, sum.Total)
	}

	// Reset clears the flow.
	resp, _ = p.do(t, "POST", "/checkout/reset", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset = %d", resp.StatusCode)
	}
	_, data = p.do(t, "GET", "/checkout", nil)
	var st model.CheckoutState
	json.Unmarshal(data, &st)
	if st.Form.Name != "" {
		t.Error("checkout state survived reset")
	}
}

func TestProductPassthrough(t *testing.T) {
	p := newTestProxy(t)

	resp, data := p.do(t, "GET", "/products/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /products/1 = %d", resp.StatusCode)
	}
	var prod model.Product
	json.Unmarshal(data, &prod)
	if prod.Name != "Azul" {
		t.Errorf("product = %+v", prod)
	}

	resp, data = p.do(t, "GET", "/products?limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /products = %d", resp.StatusCode)
	}
	var page storeapi.ProductPage
	json.Unmarshal(data, &page)
	if page.Count != 2 || len(page.Results) != 2 {
		t.Errorf("page = %+v", page)
	}

	resp, _ = p.do(t, "GET", "/products/999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing product = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	p := newTestProxy(t)
	resp, _ := p.do(t, "GET", "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}
}
