package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cart-proxy/internal/model"
	"cart-proxy/internal/session"
)

type loginRequest struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
}

type loginResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          json.RawMessage `json:"user,omitempty"`
}

// handleLogin exchanges a provider token for store credentials, stores them,
// and folds the guest cart into the account. POST /auth/login
//
// A failed merge does not fail the login: the shopper is authenticated
// either way, the guest slot stays put, and the next login retries the
// merge.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Provider == "" || req.AccessToken == "" {
		h.writeError(w, model.NewValidationError("provider/access_token", "both required"))
		return
	}

	result, err := h.api.Login(r.Context(), req.Provider, req.AccessToken)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessionID := h.sessionID(r)
	if err := h.sessions.SetTokens(sessionID, session.Tokens{
		Access:  result.AccessToken,
		Refresh: result.RefreshToken,
	}); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.svc.MergeOnLogin(r.Context(), sessionID); err != nil {
		h.logger.Error("guest cart merge failed, will retry next login",
			slog.String("session", sessionID),
			slog.String("error", err.Error()),
		)
	}

	// The cart switched backends, so the cached guest view is wrong now.
	h.engine.Invalidate(r.Context(), sessionID)

	h.writeJSON(w, http.StatusOK, loginResponse{
		Authenticated: true,
		User:          result.User,
	})
}

// handleLogout drops the session's tokens and cached cart. POST /auth/logout
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)
	if err := h.sessions.Clear(sessionID); err != nil {
		h.writeError(w, err)
		return
	}
	h.engine.Invalidate(r.Context(), sessionID)
	h.writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

// handleAuthState reports whether the session holds a usable token.
// GET /auth/state
func (h *Handler) handleAuthState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{
		"authenticated": h.sessions.IsAuthenticated(h.sessionID(r)),
	})
}
