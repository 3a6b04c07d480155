package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"cart-proxy/internal/model"
)

func TestMCPError_UnwrapsWrappedTaxonomyErrors(t *testing.T) {
	h := &Handler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"wrapped not found",
			fmt.Errorf("updating cart item srv-1: %w", model.NewNotFoundError("cart item")),
			"NOT_FOUND: cart item not found",
		},
		{
			"wrapped validation",
			fmt.Errorf("adding to cart: %w", model.NewValidationError("quantity", "must be positive")),
			"VALIDATION_ERROR: invalid quantity: must be positive",
		},
		{
			"bare api error",
			model.NewUnauthorizedError("token expired"),
			"UNAUTHORIZED: token expired",
		},
		{
			"plain error hides detail",
			errors.New("dial tcp: connection refused"),
			"internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.mcpError(tt.err).Error(); got != tt.want {
				t.Errorf("mcpError = %q, want %q", got, tt.want)
			}
		})
	}
}
