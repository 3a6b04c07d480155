package handler

import (
	"net/http"
	"strconv"

	"cart-proxy/internal/model"
	"cart-proxy/internal/storeapi"
)

// handleListProducts passes catalog queries through to the retail API,
// preserving its {results, count} envelope. GET /products
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storeapi.ProductFilter{
		Ordering:   q.Get("ordering"),
		Categories: q.Get("categories"),
		Types:      q.Get("types"),
		Audiences:  q.Get("audiences"),
		Brand:      q.Get("brand"),
		Search:     q.Get("search"),
	}
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.api.Products(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// handleGetProduct fetches one product. GET /products/{id}
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, model.NewValidationError("id", "must be a positive integer"))
		return
	}

	p, err := h.api.Product(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}
