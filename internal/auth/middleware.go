package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
// A package-private key type means only this package can read or write the
// userID value in a request context — no accidental collisions with other
// packages using string keys.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// TWO TOKEN CARRIERS:
// The browser sends the JWT in the "token" HttpOnly cookie (set at login,
// invisible to JavaScript — XSS can't steal it). The terminal client has no
// cookie jar worth speaking of and sends "Authorization: Bearer <jwt>"
// instead. We accept either; the header wins when both are present, since
// an explicitly-supplied credential should beat an ambient one.
//
// On success the userID lands in the request context; on failure the chain
// stops with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"not_authenticated","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithUserID returns a context carrying the authenticated user's ID.
// Normally only RequireAuth calls this; handler tests use it to simulate an
// authenticated request without running the whole middleware chain.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) when the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID finds the JWT (header first, then cookie) and validates it.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return "", errors.New("auth: malformed Authorization header")
		}
		return tokens.Validate(raw)
	}

	cookie, err := r.Cookie("token")
	if err != nil {
		// http.ErrNoCookie — not an error as such, just anonymous
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
