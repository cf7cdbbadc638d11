// Package types provides the request and response bodies of the HTTP API.
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks v against its validate tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// LoginRequest exchanges the admin credentials for a bearer token.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a signed JWT.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
