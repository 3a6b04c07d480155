// Package storeapi is the HTTP client for the upstream retail REST API:
// carts, products, and OAuth login. List endpoints return pagination
// envelopes of the form {"results": [...], "count": n}.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cart-proxy/internal/model"
	"cart-proxy/internal/transport"
)

// API paths, trailing slashes included; the upstream router is strict
// about them.
const (
	pathCarts    = "/carts/"
	pathProducts = "/products/"
	pathOAuth    = "/users/oauth/"

	userAgent = "cart-proxy/1.0"
)

// Client is the upstream retail API HTTP client. Authenticated endpoints
// take the shopper's bearer token per call; the client itself holds no
// session state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL. When fingerprint is
// set, upstream connections present a browser TLS fingerprint (required for
// stores behind fingerprinting CDNs).
func NewClient(baseURL string, fingerprint bool) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: transport.New(transport.Options{
				Timeout:            30 * time.Second,
				BrowserFingerprint: fingerprint,
			}),
		},
	}
}

// === Cart endpoints (authenticated) ===

// ListCart fetches the shopper's cart. GET /carts/
func (c *Client) ListCart(ctx context.Context, token string) ([]model.CartItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathCarts, nil, token)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results []model.CartItem `json:"results"`
	}
	if err := c.do(req, &envelope); err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	return envelope.Results, nil
}

// AddCartItem adds a product to the cart. POST /carts/
func (c *Client) AddCartItem(ctx context.Context, token string, productID int64, quantity int) (*model.CartItem, error) {
	body := map[string]any{"product": productID, "quantity": quantity}
	req, err := c.newRequest(ctx, http.MethodPost, pathCarts, body, token)
	if err != nil {
		return nil, err
	}

	var item model.CartItem
	if err := c.do(req, &item); err != nil {
		return nil, fmt.Errorf("adding cart item: %w", err)
	}
	return &item, nil
}

// UpdateCartItem changes an item's quantity. PATCH /carts/{id}/
func (c *Client) UpdateCartItem(ctx context.Context, token, itemID string, quantity int) (*model.CartItem, error) {
	body := map[string]any{"quantity": quantity}
	req, err := c.newRequest(ctx, http.MethodPatch, pathCarts+url.PathEscape(itemID)+"/", body, token)
	if err != nil {
		return nil, err
	}

	var item model.CartItem
	if err := c.do(req, &item); err != nil {
		return nil, fmt.Errorf("updating cart item %s: %w", itemID, err)
	}
	return &item, nil
}

// DeleteCartItem removes an item. DELETE /carts/{id}/
func (c *Client) DeleteCartItem(ctx context.Context, token, itemID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, pathCarts+url.PathEscape(itemID)+"/", nil, token)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("deleting cart item %s: %w", itemID, err)
	}
	return nil
}

// === Product endpoints (public) ===

// Product fetches one product. GET /products/{id}/
func (c *Client) Product(ctx context.Context, id int64) (*model.Product, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathProducts+strconv.FormatInt(id, 10)+"/", nil, "")
	if err != nil {
		return nil, err
	}

	var p model.Product
	if err := c.do(req, &p); err != nil {
		return nil, fmt.Errorf("fetching product %d: %w", id, err)
	}
	return &p, nil
}

// ProductFilter narrows and orders a catalog listing.
type ProductFilter struct {
	Offset     int
	Limit      int
	Ordering   string
	Categories string
	Types      string
	Audiences  string
	Brand      string
	Search     string
}

// ProductPage is one page of catalog results.
type ProductPage struct {
	Results []model.Product `json:"results"`
	Count   int             `json:"count"`
}

// Products lists the catalog. GET /products/?offset=&limit=&ordering=&...
func (c *Client) Products(ctx context.Context, f ProductFilter) (*ProductPage, error) {
	q := url.Values{}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	setIfPresent(q, "ordering", f.Ordering)
	setIfPresent(q, "categories", f.Categories)
	setIfPresent(q, "types", f.Types)
	setIfPresent(q, "audiences", f.Audiences)
	setIfPresent(q, "brand", f.Brand)
	setIfPresent(q, "search", f.Search)

	path := pathProducts
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var page ProductPage
	if err := c.do(req, &page); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return &page, nil
}

func setIfPresent(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

// === OAuth ===

// LoginResult is the token pair and profile returned on a successful login.
type LoginResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

// Login exchanges a provider token for store credentials. POST /users/oauth/
// Auth failures carry the server's detail message when it provides one.
func (c *Client) Login(ctx context.Context, provider, providerToken string) (*LoginResult, error) {
	body := map[string]string{"provider": provider, "access_token": providerToken}
	req, err := c.newRequest(ctx, http.MethodPost, pathOAuth, body, "")
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("logging in via %s: %w", provider, err)
	}
	if result.AccessToken == "" {
		return nil, model.NewUpstreamError("oauth API", fmt.Errorf("empty access token"))
	}
	return &result, nil
}

// === Request plumbing ===

// newRequest builds a JSON request. token, when non-empty, becomes the
// Authorization bearer header; the proxy attaches it here rather than in
// any service layer.
func (c *Client) newRequest(ctx context.Context, method, path string, body any, token string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes the request and decodes the response into result (which may
// be nil for 204-style endpoints).
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("retail API", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.NewUpstreamError("retail API", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp.StatusCode, respBody)
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return model.NewUpstreamError("retail API", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// parseError maps upstream failures into the shared taxonomy. The API
// reports errors as {"detail": "..."}.
func (c *Client) parseError(statusCode int, body []byte) error {
	var e struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &e)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if e.Detail == "" {
			e.Detail = "authentication failed"
		}
		return model.NewUnauthorizedError(e.Detail)
	case http.StatusNotFound:
		return model.NewNotFoundError("resource")
	case http.StatusTooManyRequests:
		return model.NewRateLimitError("retail API")
	case http.StatusBadRequest:
		if e.Detail == "" {
			e.Detail = "rejected by upstream"
		}
		return model.NewValidationError("request", e.Detail)
	default:
		return model.NewUpstreamError("retail API", fmt.Errorf("status %d: %s", statusCode, truncate(body, 200)))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
