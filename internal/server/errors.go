package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrBadRequest indicates a malformed request body or parameter
type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// HTTPStatus returns the HTTP status code for an error. Provider failures
// are reported as 502 so clients can tell them from server bugs.
func HTTPStatus(err error) int {
	var (
		parseErr      *greeting.ParseError
		validationErr *greeting.ValidationError
		fieldErrs     validator.ValidationErrors
		badRequest    *ErrBadRequest
		credentials   *ErrInvalidCredentials
		notFound      *ErrNotFound
		evalErr       *sincerity.EvaluationParseError
		collabErr     *greeting.CollaboratorError
		statusErr     *llm.StatusError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &validationErr),
		errors.As(err, &fieldErrs), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case errors.As(err, &credentials):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &evalErr), errors.Is(err, orchestrator.ErrGenerationExhausted):
		return http.StatusBadGateway
	case llm.IsRateLimited(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &collabErr), errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
