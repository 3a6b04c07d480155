package handler

import (
	"net/http"

	"cart-proxy/internal/model"
)

// cartResponse is the storefront's cart view.
type cartResponse struct {
	Items    []model.CartItem `json:"items"`
	Subtotal model.FlexPrice  `json:"subtotal"`
}

func (h *Handler) cartView(items []model.CartItem) cartResponse {
	if items == nil {
		items = []model.CartItem{}
	}
	return cartResponse{Items: items, Subtotal: model.Subtotal(items)}
}

// handleGetCart serves the cached cart view. GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	items := h.engine.View(r.Context(), h.sessionID(r))
	h.writeJSON(w, http.StatusOK, h.cartView(items))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// handleAddItem queues an add and returns the patched view at once; the
// upstream write happens after the debounce window. POST /cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ProductID <= 0 {
		h.writeError(w, model.NewValidationError("product_id", "must be positive"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	session := h.sessionID(r)
	if _, err := h.engine.Add(r.Context(), session, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}

	items := h.engine.View(r.Context(), session)
	h.writeJSON(w, http.StatusAccepted, h.cartView(items))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// handleUpdateItem queues a quantity change. A non-positive quantity turns
// into a removal. PATCH /cart/items/{id}
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if itemID == "" {
		h.writeError(w, model.NewValidationError("id", "item ID required"))
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	session := h.sessionID(r)
	if _, err := h.engine.UpdateQuantity(r.Context(), session, itemID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}

	items := h.engine.View(r.Context(), session)
	h.writeJSON(w, http.StatusAccepted, h.cartView(items))
}

// handleRemoveItem queues a removal. DELETE /cart/items/{id}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if itemID == "" {
		h.writeError(w, model.NewValidationError("id", "item ID required"))
		return
	}

	session := h.sessionID(r)
	if _, err := h.engine.Remove(r.Context(), session, itemID); err != nil {
		h.writeError(w, err)
		return
	}

	items := h.engine.View(r.Context(), session)
	h.writeJSON(w, http.StatusAccepted, h.cartView(items))
}
