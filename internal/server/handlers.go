package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/greeting-personalizer/internal/db"
	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/types"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 200
)

func errorBody(message string) types.ErrorResponse {
	return types.ErrorResponse{Error: message}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleToken exchanges the admin credentials for a JWT.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.jwtService == nil || s.admin.PasswordHash == "" || s.admin.Password == nil {
		s.errorResponse(w, r, &ErrNotFound{Resource: "authentication"})
		return
	}

	var req types.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := types.Validate(req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	// Both checks always run so timing does not reveal which one failed.
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.admin.Username)) == 1
	passOK := s.admin.Password.VerifyPassword(req.Password, s.admin.PasswordHash)
	if !userOK || !passOK {
		s.errorResponse(w, r, &ErrInvalidCredentials{})
		return
	}

	token, expiresAt, err := s.jwtService.GenerateToken(req.Username)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.TokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req types.ClassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := types.Validate(req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	category, err := greeting.Classify(req.EventDate, req.EventCategory)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.ClassifyResponse{Category: category})
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req types.ComposeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := types.Validate(req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if req.Language == "" {
		req.Language = greeting.English
	}

	prompt, err := s.service.Compose(req.Request, req.Language)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.ComposeResponse{Prompt: prompt, Language: req.Language})
}

// handleGreetingText runs the sincerity loop, or a single generation call
// when evaluate_sincerity is false.
func (s *Server) handleGreetingText(w http.ResponseWriter, r *http.Request) {
	var req types.TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := types.Validate(req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	evaluate := s.generation.Evaluate()
	if req.EvaluateSincerity != nil {
		evaluate = *req.EvaluateSincerity
	}
	minSincerity := s.generation.Threshold()
	if req.MinSincerity != nil {
		minSincerity = *req.MinSincerity
	}
	maxRetries := s.generation.Retries()
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	if !evaluate {
		text, err := s.service.GenerateGreetingText(r.Context(), req.Request, greeter.TextOptions{EvaluateSincerity: false})
		if err != nil {
			s.errorResponse(w, r, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, types.TextResponse{Text: text})
		return
	}

	outcome, err := s.service.GenerateGreetingTextOutcome(r.Context(), req.Request, minSincerity, maxRetries)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.TextResponse{Text: outcome.Text, Outcome: outcome})
}

// handleGreetingImage renders one image and returns its bytes.
func (s *Server) handleGreetingImage(w http.ResponseWriter, r *http.Request) {
	var req types.ImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := types.Validate(req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	opts := greeter.ImageOptions{
		Width:  s.generation.ImageWidth,
		Height: s.generation.ImageHeight,
		Count:  1,
	}
	if req.Width > 0 {
		opts.Width = req.Width
	}
	if req.Height > 0 {
		opts.Height = req.Height
	}

	result, err := s.service.RenderImages(r.Context(), req.Request, opts)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	img := result.Images[0]
	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("X-Event-Category", string(result.Category))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	score, err := s.service.EvaluateSincerity(r.Context(), req.Text, req.Context)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.NewScoreResponse(score))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req types.CheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := types.Validate(req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	minSincerity := s.generation.Threshold()
	if req.MinSincerity != nil {
		minSincerity = *req.MinSincerity
	}

	ok, score, err := s.service.IsTextSincereEnough(r.Context(), req.Text, minSincerity, req.Context)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.CheckResponse{Sincere: ok, Score: types.NewScoreResponse(score)})
}

// handleCelebrations lists birthdays and holiday recipients for ?date=,
// defaulting to today.
func (s *Server) handleCelebrations(w http.ResponseWriter, r *http.Request) {
	if s.celebrations == nil {
		s.errorResponse(w, r, &ErrNotFound{Resource: "user directory"})
		return
	}

	date := s.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.ParseInLocation("02.01.2006", raw, time.Local)
		if err != nil {
			s.errorResponse(w, r, &greeting.ParseError{Input: raw, Reason: "expected DD.MM.YYYY"})
			return
		}
		date = parsed
	}

	c, err := s.celebrations.Celebrations(r.Context(), date)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, c)
}

// handleListRuns lists recorded runs, newest first. It accepts status,
// category and limit query parameters.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, r, &ErrNotFound{Resource: "run history"})
		return
	}

	q := r.URL.Query()
	filters := db.RunFilters{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Limit:    defaultRunsLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.errorResponse(w, r, &ErrBadRequest{Message: "limit must be a positive integer"})
			return
		}
		filters.Limit = min(limit, maxRunsLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, types.RunListResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, r, &ErrNotFound{Resource: "run history"})
		return
	}

	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.errorResponse(w, r, &ErrBadRequest{Message: "invalid run id: " + idStr})
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if run == nil {
		s.errorResponse(w, r, &ErrNotFound{Resource: "run", ID: idStr})
		return
	}

	attempts, err := s.runs.ListAttempts(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []db.Attempt{}
	}
	s.jsonResponse(w, http.StatusOK, types.RunResponse{Run: *run, AttemptLog: attempts})
}
