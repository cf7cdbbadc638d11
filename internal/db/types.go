package db

import (
	"time"

	"github.com/google/uuid"
)

// Run status values
const (
	RunStatusRunning    = "running"
	RunStatusAccepted   = "accepted"
	RunStatusBestEffort = "best_effort"
	RunStatusExhausted  = "exhausted"
	RunStatusFailed     = "failed"
)

// Run represents one text generation run
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Category     string     `json:"event_category"`
	Segment      string     `json:"client_segment"`
	Tone         string     `json:"tone"`
	ClientName   string     `json:"client_name,omitempty"`
	MinSincerity float64    `json:"min_sincerity"`
	MaxRetries   int        `json:"max_retries"`
	Status       string     `json:"status"`
	FinalText    string     `json:"final_text,omitempty"`
	Composite    *float64   `json:"composite,omitempty"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RunInput holds the fields written when a run starts
type RunInput struct {
	Category     string
	Segment      string
	Tone         string
	ClientName   string
	MinSincerity float64
	MaxRetries   int
}

// RunResult holds the fields written when a run ends
type RunResult struct {
	Status       string
	FinalText    string
	Composite    *float64
	Attempts     int
	ErrorMessage string
}

// Attempt is one generate-and-score round of a run
type Attempt struct {
	ID              int64     `json:"id"`
	RunID           uuid.UUID `json:"run_id"`
	Attempt         int       `json:"attempt"`
	Text            string    `json:"text,omitempty"`
	Sincerity       float64   `json:"sincerity_score"`
	Warmth          float64   `json:"warmth_score"`
	Personalization float64   `json:"personalization_score"`
	Authenticity    float64   `json:"authenticity_score"`
	Composite       float64   `json:"composite"`
	Accepted        bool      `json:"accepted"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Status   string
	Category string
	Limit    int
}
