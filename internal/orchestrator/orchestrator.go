// Package orchestrator runs the generate → evaluate → retry loop for greeting
// text and picks the best candidate when no attempt reaches the threshold.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/logging"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

// Scorer evaluates one piece of greeting text.
type Scorer interface {
	Evaluate(ctx context.Context, text string, ectx *greeting.EvaluationContext) (sincerity.Score, error)
}

// Candidate is one attempt of the loop. Failed generations carry Error and
// no text; they are never selected.
type Candidate struct {
	Attempt   int             `json:"attempt"`
	Text      string          `json:"text,omitempty"`
	Score     sincerity.Score `json:"score"`
	Composite float64         `json:"composite"`
	Accepted  bool            `json:"accepted"`
	Error     string          `json:"error,omitempty"`
}

// Outcome is the loop result. Score is the true score of Text even when it
// is below the threshold; Accepted tells the two cases apart.
type Outcome struct {
	Text       string                 `json:"text"`
	Score      sincerity.Score        `json:"score"`
	Composite  float64                `json:"composite"`
	Attempts   int                    `json:"attempts"`
	Accepted   bool                   `json:"accepted"`
	Category   greeting.EventCategory `json:"event_category"`
	Candidates []Candidate            `json:"candidates"`
}

// AttemptObserver is notified after every attempt, in order.
type AttemptObserver func(ctx context.Context, c Candidate)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithObserver registers fn to receive each attempt.
func WithObserver(fn AttemptObserver) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// Orchestrator coordinates a text client and a scorer. It holds no
// per-request state and may be shared.
type Orchestrator struct {
	client    llm.Client
	scorer    Scorer
	composer  *greeting.Composer
	logger    *zap.Logger
	observers []AttemptObserver
}

// New returns an Orchestrator that writes prompts with composer.
func New(client llm.Client, scorer Scorer, composer *greeting.Composer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		scorer:   scorer,
		composer: composer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate runs up to maxRetries+1 attempts. The first attempt whose
// composite reaches minSincerity is returned at once. Otherwise the
// highest-scoring candidate wins, earliest on ties, with Attempts set to
// maxRetries+1. A generation failure is absorbed as a zero-score attempt;
// if every attempt fails the result is *GenerationExhaustedError.
// Evaluation errors end the loop immediately.
func (o *Orchestrator) Generate(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (*Outcome, error) {
	if maxRetries < 0 {
		return nil, &greeting.ValidationError{Field: "max_retries", Reason: fmt.Sprintf("must be >= 0, got %d", maxRetries)}
	}
	if minSincerity < 0 || minSincerity > 1 {
		return nil, &greeting.ValidationError{Field: "min_sincerity", Reason: fmt.Sprintf("must be within [0, 1], got %g", minSincerity)}
	}

	prompt, category, err := o.composer.TextPrompt(req)
	if err != nil {
		return nil, err
	}
	ectx := greeting.EvaluationContextFor(req, category)
	totalAttempts := maxRetries + 1

	outcome := &Outcome{Category: category}
	best := -1
	var lastErr error

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := o.client.GenerateContent(ctx, prompt, llm.TierStandard)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("empty completion")
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = &greeting.CollaboratorError{Op: "generate text", Err: err}
			o.logger.Warn("text generation attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", totalAttempts),
				zap.Error(err))
			o.record(ctx, outcome, Candidate{Attempt: attempt, Error: err.Error()})
			continue
		}
		text = strings.TrimSpace(text)

		score, err := o.scorer.Evaluate(ctx, text, &ectx)
		if err != nil {
			return nil, fmt.Errorf("sincerity evaluation failed at attempt %d: %w", attempt, err)
		}

		cand := Candidate{
			Attempt:   attempt,
			Text:      text,
			Score:     score,
			Composite: score.Composite(),
			Accepted:  score.Meets(minSincerity),
		}
		o.record(ctx, outcome, cand)
		o.logger.Debug("greeting attempt scored",
			zap.Int("attempt", attempt),
			zap.Float64("composite", cand.Composite),
			zap.Float64("threshold", minSincerity),
			zap.Bool("accepted", cand.Accepted))

		if cand.Accepted {
			outcome.Text, outcome.Score, outcome.Composite = cand.Text, cand.Score, cand.Composite
			outcome.Attempts = attempt
			outcome.Accepted = true
			return outcome, nil
		}

		if best < 0 || cand.Composite > outcome.Candidates[best].Composite {
			best = len(outcome.Candidates) - 1
		}
	}

	if best < 0 {
		return nil, &GenerationExhaustedError{Attempts: totalAttempts, Last: lastErr}
	}

	chosen := outcome.Candidates[best]
	outcome.Text, outcome.Score, outcome.Composite = chosen.Text, chosen.Score, chosen.Composite
	outcome.Attempts = totalAttempts
	return outcome, nil
}

func (o *Orchestrator) record(ctx context.Context, outcome *Outcome, c Candidate) {
	outcome.Candidates = append(outcome.Candidates, c)
	for _, fn := range o.observers {
		fn(ctx, c)
	}
}
