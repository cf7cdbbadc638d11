// Package server provides the HTTP REST API for the greeting personalizer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/config"
	"github.com/jonathan/greeting-personalizer/internal/db"
	"github.com/jonathan/greeting-personalizer/internal/directory"
	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/logging"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
	"github.com/jonathan/greeting-personalizer/internal/server/middleware"
	"github.com/jonathan/greeting-personalizer/internal/server/ratelimit"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

const maxBodyBytes = 1 << 20

// GreetingService is the part of greeter.Service the API exposes.
type GreetingService interface {
	Compose(req greeting.Request, lang greeting.Language) (string, error)
	GenerateGreetingText(ctx context.Context, req greeting.Request, opts greeter.TextOptions) (string, error)
	GenerateGreetingTextOutcome(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (*orchestrator.Outcome, error)
	RenderImages(ctx context.Context, req greeting.Request, opts greeter.ImageOptions) (*greeter.ImageResult, error)
	EvaluateSincerity(ctx context.Context, text string, ectx *greeting.EvaluationContext) (sincerity.Score, error)
	IsTextSincereEnough(ctx context.Context, text string, minSincerity float64, ectx *greeting.EvaluationContext) (bool, sincerity.Score, error)
}

// CelebrationSource lists who is celebrating on a date.
type CelebrationSource interface {
	Celebrations(ctx context.Context, date time.Time) (*directory.Celebrations, error)
}

// RunStore reads recorded sincerity loop runs.
type RunStore interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
	ListRuns(ctx context.Context, filters db.RunFilters) ([]db.Run, error)
	ListAttempts(ctx context.Context, runID uuid.UUID) ([]db.Attempt, error)
}

// Admin is the single account that may request tokens.
type Admin struct {
	Username     string
	PasswordHash string
	Password     *config.PasswordConfig
}

// Config holds server dependencies. Only Service is required; a nil
// Celebrations or Runs turns the matching endpoints into 404s, a nil JWT
// leaves every endpoint open and a nil Limiter disables rate limiting.
type Config struct {
	Port         string
	Service      GreetingService
	Celebrations CelebrationSource
	Runs         RunStore
	Limiter      ratelimit.Allower
	JWT          *JWTService
	Admin        Admin
	Generation   config.Generation
	Logger       *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	service      GreetingService
	celebrations CelebrationSource
	runs         RunStore
	limiter      ratelimit.Allower
	jwtService   *JWTService
	admin        Admin
	generation   config.Generation
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("server: greeting service is required")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	s := &Server{
		service:      cfg.Service,
		celebrations: cfg.Celebrations,
		runs:         cfg.Runs,
		limiter:      cfg.Limiter,
		jwtService:   cfg.JWT,
		admin:        cfg.Admin,
		generation:   cfg.Generation.MergeWithDefaults(config.DefaultGeneration()),
		logger:       logging.OrNop(cfg.Logger),
		now:          time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/token", s.handleToken)

	mux.Handle("POST /classify", s.protect(s.handleClassify))
	mux.Handle("POST /prompts/compose", s.protect(s.handleCompose))
	mux.Handle("POST /greetings/text", s.protect(s.handleGreetingText))
	mux.Handle("POST /greetings/image", s.protect(s.handleGreetingImage))
	mux.Handle("POST /sincerity/evaluate", s.protect(s.handleEvaluate))
	mux.Handle("POST /sincerity/check", s.protect(s.handleCheck))
	mux.Handle("GET /celebrations", s.protect(s.handleCelebrations))
	mux.Handle("GET /runs", s.protect(s.handleListRuns))
	mux.Handle("GET /runs/{id}", s.protect(s.handleGetRun))

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // a sincerity loop makes several provider calls
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging logs one line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", clientID(r)))
	})
}

// withRateLimit rejects requests over the client's limit with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.limiter.Allow(r.Context(), clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID is the remote IP. Forwarded headers are not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse maps err to a status with HTTPStatus and writes it. The
// text of unexpected errors is not sent to the client.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.jsonResponse(w, status, errorBody(message))
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ErrBadRequest{Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}
