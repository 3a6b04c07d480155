package handler

import (
	"net/http"

	"cart-proxy/internal/model"
)

// handleGetCheckout returns the session's accumulated checkout progress.
// GET /checkout
func (h *Handler) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	state := h.checkout.State(h.sessionID(r))
	h.writeJSON(w, http.StatusOK, state)
}

// handlePutForm records the shipping form step. PUT /checkout/form
func (h *Handler) handlePutForm(w http.ResponseWriter, r *http.Request) {
	var form model.CheckoutForm
	if err := decodeJSON(r, &form); err != nil {
		h.writeError(w, err)
		return
	}
	h.checkout.SetForm(h.sessionID(r), form)
	h.writeJSON(w, http.StatusOK, h.checkout.State(h.sessionID(r)))
}

// handleDeliveryOptions lists the configured delivery methods.
// GET /checkout/delivery-options
func (h *Handler) handleDeliveryOptions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"results": h.delivery})
}

type deliveryRequest struct {
	ID string `json:"id"`
}

// handlePutDelivery records the chosen delivery option. The choice must be
// one of the configured options; the price always comes from config, never
// from the client. PUT /checkout/delivery
func (h *Handler) handlePutDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	var chosen *model.DeliveryOption
	for i := range h.delivery {
		if h.delivery[i].ID == req.ID {
			chosen = &h.delivery[i]
			break
		}
	}
	if chosen == nil {
		h.writeError(w, model.NewValidationError("id", "unknown delivery option"))
		return
	}

	h.checkout.SetDelivery(h.sessionID(r), *chosen)
	h.writeJSON(w, http.StatusOK, h.checkout.State(h.sessionID(r)))
}

// handlePutCard records the card form step. PUT /checkout/card
func (h *Handler) handlePutCard(w http.ResponseWriter, r *http.Request) {
	var card model.PaymentCard
	if err := decodeJSON(r, &card); err != nil {
		h.writeError(w, err)
		return
	}
	h.checkout.SetCard(h.sessionID(r), card)
	h.writeJSON(w, http.StatusOK, h.checkout.State(h.sessionID(r)))
}

// handleSummary assembles the order-review view from checkout progress and
// the live cart. GET /checkout/summary
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)
	items := h.engine.View(r.Context(), sessionID)
	h.writeJSON(w, http.StatusOK, h.checkout.Summary(sessionID, items))
}

// handleResetCheckout discards the session's checkout progress.
// POST /checkout/reset
func (h *Handler) handleResetCheckout(w http.ResponseWriter, r *http.Request) {
	h.checkout.Reset(h.sessionID(r))
	w.WriteHeader(http.StatusNoContent)
}
