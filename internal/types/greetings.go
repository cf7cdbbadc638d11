package types

import (
	"github.com/jonathan/greeting-personalizer/internal/db"
	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

// ClassifyRequest asks for the category of a date.
type ClassifyRequest struct {
	EventDate     string                 `json:"event_date" validate:"required"`
	EventCategory greeting.EventCategory `json:"event_category,omitempty" validate:"omitempty,oneof=new_year birthday womens_day professional_holiday company_anniversary founding_day"`
}

type ClassifyResponse struct {
	Category greeting.EventCategory `json:"category"`
}

// ComposeRequest asks for the fragment prompt of a greeting request.
// Language defaults to English.
type ComposeRequest struct {
	Request  greeting.Request  `json:"request"`
	Language greeting.Language `json:"language,omitempty" validate:"omitempty,oneof=ru en"`
}

type ComposeResponse struct {
	Prompt   string            `json:"prompt"`
	Language greeting.Language `json:"language"`
}

// TextRequest asks for greeting text. Nil fields take the service defaults;
// sincerity evaluation is on unless EvaluateSincerity is false.
type TextRequest struct {
	Request           greeting.Request `json:"request"`
	EvaluateSincerity *bool            `json:"evaluate_sincerity,omitempty"`
	MinSincerity      *float64         `json:"min_sincerity,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxRetries        *int             `json:"max_retries,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// TextResponse holds the chosen text and, when sincerity was evaluated, the
// full retry outcome.
type TextResponse struct {
	Text    string                `json:"text"`
	Outcome *orchestrator.Outcome `json:"outcome,omitempty"`
}

// ImageRequest asks for one greeting image. Zero sizes take the defaults.
type ImageRequest struct {
	Request greeting.Request `json:"request"`
	Width   int              `json:"width,omitempty" validate:"omitempty,min=64,max=2048"`
	Height  int              `json:"height,omitempty" validate:"omitempty,min=64,max=2048"`
}

// EvaluateRequest asks for the rubric scores of a text. Empty text scores zero.
type EvaluateRequest struct {
	Text    string                      `json:"text"`
	Context *greeting.EvaluationContext `json:"context,omitempty"`
}

// ScoreResponse is a rubric score with its weighted composite.
type ScoreResponse struct {
	sincerity.Score
	Composite float64 `json:"composite"`
}

// NewScoreResponse computes the composite for s.
func NewScoreResponse(s sincerity.Score) ScoreResponse {
	return ScoreResponse{Score: s, Composite: s.Composite()}
}

// CheckRequest asks whether a text meets a sincerity threshold.
type CheckRequest struct {
	Text         string                      `json:"text"`
	MinSincerity *float64                    `json:"min_sincerity,omitempty" validate:"omitempty,gte=0,lte=1"`
	Context      *greeting.EvaluationContext `json:"context,omitempty"`
}

type CheckResponse struct {
	Sincere bool          `json:"sincere"`
	Score   ScoreResponse `json:"score"`
}

// RunResponse is a recorded run with its attempts.
type RunResponse struct {
	db.Run
	AttemptLog []db.Attempt `json:"attempt_log"`
}

type RunListResponse struct {
	Runs  []db.Run `json:"runs"`
	Count int      `json:"count"`
}
