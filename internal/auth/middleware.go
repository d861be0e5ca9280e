package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type for this package's context keys.
//
// context.WithValue keys are compared by type AND value. With a plain string
// key like "userID", any package could read or shadow the entry; with a
// package-private type, only this package can construct the key, so only
// this package controls what lives under it.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the cookie that carries the JWT. The auth handlers set it
// and the middleware reads it; exporting the name keeps the two in sync.
const CookieName = "token"

// RequireAuth enforces authentication on protected routes.
//
// It reads the JWT from the HttpOnly "token" cookie, validates it, and puts
// the userID into the request context. Missing or invalid tokens get a 401
// and the chain stops there.
//
// This same middleware guards the websocket endpoint: a browser's upgrade
// request is an ordinary GET and carries cookies like any other request, so
// by the time the connection is hijacked the user is already identified.
//
// Why a cookie and not an Authorization header? HttpOnly cookies are
// invisible to page JavaScript, so an XSS bug cannot exfiltrate the token,
// and the browser attaches them to the websocket handshake for free (the
// browser WebSocket API has no way to set custom headers).
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) when the request never passed RequireAuth.
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // unreachable behind RequireAuth, but handle it anyway
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID reads the JWT cookie and validates it.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		// http.ErrNoCookie: no cookie at all, i.e. an anonymous request
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
