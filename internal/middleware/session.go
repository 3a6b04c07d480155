package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// SessionCookie names the cookie carrying the shopper's session ID. The ID
// keys everything: guest cart slot, tokens, cache entries, checkout state.
const SessionCookie = "cart_session"

type ctxKey int

const sessionCtxKey ctxKey = iota

// Session returns middleware that reads the session cookie, minting and
// setting a fresh ID when the request has none, and stores the ID in the
// request context.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				id = c.Value
			}
			if id == "" {
				id = newSessionID()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), sessionCtxKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the session ID stored by Session, or "" outside it.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey).(string)
	return id
}

func newSessionID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("session id entropy unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
