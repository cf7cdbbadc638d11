package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

// ErrRateLimited marks a provider response with HTTP 429.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateLimitPattern matches a 429 named as a status or error code in free text.
var rateLimitPattern = regexp.MustCompile(`(?i)\b(status|code|error)\s*[:=]?\s*429\b`)

// StatusError is a non-2xx response from a provider REST API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, body)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429 StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is a provider "too many requests" error.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	// Typed provider errors are decided by their status code alone.
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.StatusCode == http.StatusTooManyRequests
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests
	}
	var oErr *openai.Error
	if errors.As(err, &oErr) {
		return oErr.StatusCode == http.StatusTooManyRequests
	}

	msg := err.Error()
	return strings.Contains(strings.ToLower(msg), "too many requests") || rateLimitPattern.MatchString(msg)
}
