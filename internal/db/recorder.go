package db

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
)

type runStore interface {
	CreateRun(ctx context.Context, in RunInput) (uuid.UUID, error)
	RecordAttempt(ctx context.Context, a Attempt) error
	CompleteRun(ctx context.Context, runID uuid.UUID, res RunResult) error
}

// Recorder maps sincerity loop events onto run history rows.
type Recorder struct {
	store runStore
}

// NewRecorder returns a Recorder writing to db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{store: db}
}

// BeginRun opens a run for req.
func (r *Recorder) BeginRun(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (uuid.UUID, error) {
	req = req.WithDefaults()
	category := req.EventCategory
	if category == "" {
		if c, err := greeting.Classify(req.EventDate, ""); err == nil {
			category = c
		}
	}
	return r.store.CreateRun(ctx, RunInput{
		Category:     string(category),
		Segment:      string(req.ClientSegment),
		Tone:         string(req.Tone),
		ClientName:   req.ClientName,
		MinSincerity: minSincerity,
		MaxRetries:   maxRetries,
	})
}

// RecordAttempt stores one loop candidate.
func (r *Recorder) RecordAttempt(ctx context.Context, runID uuid.UUID, c orchestrator.Candidate) error {
	return r.store.RecordAttempt(ctx, Attempt{
		RunID:           runID,
		Attempt:         c.Attempt,
		Text:            c.Text,
		Sincerity:       c.Score.Sincerity,
		Warmth:          c.Score.Warmth,
		Personalization: c.Score.Personalization,
		Authenticity:    c.Score.Authenticity,
		Composite:       c.Composite,
		Accepted:        c.Accepted,
		ErrorMessage:    c.Error,
	})
}

// FinishRun closes a run from the loop result. Exactly one of outcome and
// err is expected to be set.
func (r *Recorder) FinishRun(ctx context.Context, runID uuid.UUID, outcome *orchestrator.Outcome, err error) error {
	return r.store.CompleteRun(ctx, runID, resultOf(outcome, err))
}

func resultOf(outcome *orchestrator.Outcome, err error) RunResult {
	if err != nil {
		res := RunResult{Status: RunStatusFailed, ErrorMessage: err.Error()}
		var exhausted *orchestrator.GenerationExhaustedError
		if errors.As(err, &exhausted) {
			res.Status = RunStatusExhausted
			res.Attempts = exhausted.Attempts
		}
		return res
	}
	if outcome == nil {
		return RunResult{Status: RunStatusFailed, ErrorMessage: "no outcome"}
	}

	composite := outcome.Composite
	res := RunResult{
		Status:    RunStatusBestEffort,
		FinalText: outcome.Text,
		Composite: &composite,
		Attempts:  outcome.Attempts,
	}
	if outcome.Accepted {
		res.Status = RunStatusAccepted
	}
	return res
}
