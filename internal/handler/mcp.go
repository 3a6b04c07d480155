// MCP transport handler using the official MCP Go SDK.
// Exposes cart operations as MCP tools so agents can shop the store.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cart-proxy/internal/model"
)

// === MCP Tool Input/Output Types ===
// Every tool takes a session ID: MCP carries no cookies, so the agent holds
// its session explicitly and threads it through each call.

// GetCartInput is the input schema for the get_cart tool.
type GetCartInput struct {
	Session string `json:"session" jsonschema:"shopper session ID,required"`
}

// AddToCartInput is the input schema for the add_to_cart tool.
type AddToCartInput struct {
	Session   string `json:"session" jsonschema:"shopper session ID,required"`
	ProductID int64  `json:"product_id" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity, defaults to 1"`
}

// UpdateCartItemInput is the input schema for the update_cart_item tool.
type UpdateCartItemInput struct {
	Session  string `json:"session" jsonschema:"shopper session ID,required"`
	ItemID   string `json:"item_id" jsonschema:"cart item ID,required"`
	Quantity int    `json:"quantity" jsonschema:"new quantity; zero or less removes the item,required"`
}

// RemoveCartItemInput is the input schema for the remove_cart_item tool.
type RemoveCartItemInput struct {
	Session string `json:"session" jsonschema:"shopper session ID,required"`
	ItemID  string `json:"item_id" jsonschema:"cart item ID,required"`
}

// CartView is the tool output: the cart after the operation.
type CartView struct {
	Items    []model.CartItem `json:"items"`
	Subtotal model.FlexPrice  `json:"subtotal"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// Tool mutations commit synchronously; an agent expects the authoritative
// result, so the debounce window that smooths UI click bursts is skipped.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cart-proxy",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Board game store cart operations. " +
				"Use these tools to inspect and modify a shopper's cart.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart contents and subtotal for a session.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart. Adding a product already in the cart raises its quantity.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_cart_item",
		Description: "Set a cart item's quantity. A quantity of zero or less removes the item.",
	}, h.mcpUpdateCartItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_cart_item",
		Description: "Remove an item from the cart.",
	}, h.mcpRemoveCartItem)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.Session == "" {
		return nil, nil, fmt.Errorf("session is required")
	}
	return nil, h.mcpView(ctx, input.Session), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.Session == "" {
		return nil, nil, fmt.Errorf("session is required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	if _, err := h.svc.Add(ctx, input.Session, input.ProductID, quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}
	h.engine.Invalidate(ctx, input.Session)

	return nil, h.mcpView(ctx, input.Session), nil
}

func (h *Handler) mcpUpdateCartItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateCartItemInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.Session == "" || input.ItemID == "" {
		return nil, nil, fmt.Errorf("session and item_id are required")
	}

	if _, err := h.svc.UpdateQuantity(ctx, input.Session, input.ItemID, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}
	h.engine.Invalidate(ctx, input.Session)

	return nil, h.mcpView(ctx, input.Session), nil
}

func (h *Handler) mcpRemoveCartItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveCartItemInput,
) (*mcp.CallToolResult, *CartView, error) {
	if input.Session == "" || input.ItemID == "" {
		return nil, nil, fmt.Errorf("session and item_id are required")
	}

	if err := h.svc.Remove(ctx, input.Session, input.ItemID); err != nil {
		return nil, nil, h.mcpError(err)
	}
	h.engine.Invalidate(ctx, input.Session)

	return nil, h.mcpView(ctx, input.Session), nil
}

// mcpView reads the post-operation cart through the engine so the HTTP
// surface sees the same snapshot the tool returned.
func (h *Handler) mcpView(ctx context.Context, session string) *CartView {
	items := h.engine.View(ctx, session)
	if items == nil {
		items = []model.CartItem{}
	}
	return &CartView{Items: items, Subtotal: model.Subtotal(items)}
}

// mcpError converts service errors to MCP-friendly errors. Service call
// sites wrap taxonomy errors, so unwrap with errors.As like writeError does.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
