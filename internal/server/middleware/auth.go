// Package middleware provides HTTP middleware for bearer token authentication.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const usernameKey ContextKey = "username"

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (Principal, error)
}

// Principal is the authenticated caller described by a token.
type Principal interface {
	GetUsername() string
}

// ErrNoPrincipal is returned by Username for unauthenticated requests.
var ErrNoPrincipal = errors.New("no authenticated user in request context")

// AuthMiddleware rejects requests without a valid "Bearer <token>"
// Authorization header and stores the caller's username in the context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			principal, err := validator.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, principal.GetUsername())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token; the scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="greeter"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}

// Username returns the authenticated username stored by AuthMiddleware.
func Username(ctx context.Context) (string, error) {
	name, ok := ctx.Value(usernameKey).(string)
	if !ok {
		return "", ErrNoPrincipal
	}
	return name, nil
}

// WithUsername stores name as the authenticated user. Tests use it to skip
// token validation.
func WithUsername(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, usernameKey, name)
}
