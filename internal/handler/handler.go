// Package handler provides HTTP handlers for the cart proxy API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cart-proxy/internal/cart"
	"cart-proxy/internal/checkout"
	"cart-proxy/internal/middleware"
	"cart-proxy/internal/model"
	"cart-proxy/internal/optimistic"
	"cart-proxy/internal/session"
	"cart-proxy/internal/storeapi"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine   *optimistic.Engine
	svc      *cart.Service
	sessions *session.Manager
	api      *storeapi.Client
	checkout *checkout.Store
	delivery []model.DeliveryOption
	logger   *slog.Logger
}

// New creates a Handler over the cart engine and its supporting stores.
func New(
	engine *optimistic.Engine,
	svc *cart.Service,
	sessions *session.Manager,
	api *storeapi.Client,
	checkoutStore *checkout.Store,
	delivery []model.DeliveryOption,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		engine:   engine,
		svc:      svc,
		sessions: sessions,
		api:      api,
		checkout: checkoutStore,
		delivery: delivery,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Cart operations
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("PATCH /cart/items/{id}", h.handleUpdateItem)
	mux.HandleFunc("DELETE /cart/items/{id}", h.handleRemoveItem)

	// Auth
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /auth/state", h.handleAuthState)

	// Catalog passthrough
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)

	// Checkout flow
	mux.HandleFunc("GET /checkout", h.handleGetCheckout)
	mux.HandleFunc("PUT /checkout/form", h.handlePutForm)
	mux.HandleFunc("GET /checkout/delivery-options", h.handleDeliveryOptions)
	mux.HandleFunc("PUT /checkout/delivery", h.handlePutDelivery)
	mux.HandleFunc("PUT /checkout/card", h.handlePutCard)
	mux.HandleFunc("GET /checkout/summary", h.handleSummary)
	mux.HandleFunc("POST /checkout/reset", h.handleResetCheckout)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionID pulls the shopper's session from the request context. The
// session middleware always runs first, so an empty ID means a wiring bug.
func (h *Handler) sessionID(r *http.Request) string {
	return middleware.SessionID(r.Context())
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		// Wrap unexpected errors
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
