// Package greeter is the caller-facing entry point: it wires the composer,
// the text and image collaborators, the sincerity evaluator and the retry
// loop behind the operations used by the CLI, the batch job and the HTTP API.
package greeter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/logging"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

// Options configures a Service.
type Options struct {
	// ImageLanguage selects the fragment table for image prompts. Kandinsky
	// takes English prompts, GigaChat takes Russian ones.
	ImageLanguage greeting.Language
	Logger        *zap.Logger
	Observers     []orchestrator.AttemptObserver
	Recorder      RunRecorder
}

// RunRecorder persists sincerity loop runs. Its errors are logged and never
// returned to the caller.
type RunRecorder interface {
	BeginRun(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (uuid.UUID, error)
	RecordAttempt(ctx context.Context, runID uuid.UUID, c orchestrator.Candidate) error
	FinishRun(ctx context.Context, runID uuid.UUID, outcome *orchestrator.Outcome, err error) error
}

type runIDKey struct{}

func withRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok
}

// TextOptions controls GenerateGreetingText.
type TextOptions struct {
	EvaluateSincerity bool
	MinSincerity      float64
	MaxRetries        int
}

// DefaultTextOptions evaluates sincerity with threshold 0.6 and two retries.
func DefaultTextOptions() TextOptions {
	return TextOptions{
		EvaluateSincerity: true,
		MinSincerity:      sincerity.DefaultMinSincerity,
		MaxRetries:        2,
	}
}

// Service implements the greeting entry points. It is safe for concurrent use.
type Service struct {
	text          llm.Client
	images        llm.ImageClient
	textComposer  *greeting.Composer
	imageComposer *greeting.Composer
	evaluator     *sincerity.Evaluator
	loop          *orchestrator.Orchestrator
	recorder      RunRecorder
	logger        *zap.Logger
}

// NewService builds a Service. Either collaborator may be nil when the
// caller only needs the other path.
func NewService(text llm.Client, images llm.ImageClient, opts Options) *Service {
	logger := logging.OrNop(opts.Logger)
	if opts.ImageLanguage == "" {
		opts.ImageLanguage = greeting.English
	}

	s := &Service{
		text:          text,
		images:        images,
		textComposer:  greeting.NewComposer(greeting.Russian),
		imageComposer: greeting.NewComposer(opts.ImageLanguage),
		recorder:      opts.Recorder,
		logger:        logger,
	}
	if text != nil {
		s.evaluator = sincerity.NewEvaluator(text, logger)
		loopOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
		for _, obs := range opts.Observers {
			loopOpts = append(loopOpts, orchestrator.WithObserver(obs))
		}
		if s.recorder != nil {
			loopOpts = append(loopOpts, orchestrator.WithObserver(s.recordAttempt))
		}
		s.loop = orchestrator.New(text, s.evaluator, s.textComposer, loopOpts...)
	}
	return s
}

// Compose returns the fragment prompt for req in lang.
func (s *Service) Compose(req greeting.Request, lang greeting.Language) (string, error) {
	if lang == s.imageComposer.Language() {
		return s.imageComposer.Compose(req)
	}
	return greeting.NewComposer(lang).Compose(req)
}

// GenerateGreetingText writes greeting text for req. With sincerity checks
// off it makes one call and returns collaborator errors unchanged.
func (s *Service) GenerateGreetingText(ctx context.Context, req greeting.Request, opts TextOptions) (string, error) {
	if !opts.EvaluateSincerity {
		if err := s.requireText(); err != nil {
			return "", err
		}
		prompt, _, err := s.textComposer.TextPrompt(req)
		if err != nil {
			return "", err
		}
		text, err := s.text.GenerateContent(ctx, prompt, llm.TierStandard)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}

	outcome, err := s.GenerateGreetingTextOutcome(ctx, req, opts.MinSincerity, opts.MaxRetries)
	if err != nil {
		return "", err
	}
	return outcome.Text, nil
}

// GenerateGreetingTextOutcome runs the sincerity retry loop and returns the
// full outcome, including every candidate.
func (s *Service) GenerateGreetingTextOutcome(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (*orchestrator.Outcome, error) {
	if err := s.requireText(); err != nil {
		return nil, err
	}
	ctx, runID, recording := s.beginRun(ctx, req, minSincerity, maxRetries)
	outcome, err := s.loop.Generate(ctx, req, minSincerity, maxRetries)
	if recording {
		s.finishRun(ctx, runID, outcome, err)
	}
	if err != nil {
		return nil, err
	}
	if !outcome.Accepted {
		s.logger.Warn("no greeting reached the sincerity threshold, returning best effort",
			zap.Float64("composite", outcome.Composite),
			zap.Float64("threshold", minSincerity),
			zap.Int("attempts", outcome.Attempts))
	}
	return outcome, nil
}

// EvaluateSincerity scores text.
func (s *Service) EvaluateSincerity(ctx context.Context, text string, ectx *greeting.EvaluationContext) (sincerity.Score, error) {
	if err := s.requireText(); err != nil {
		return sincerity.Score{}, err
	}
	return s.evaluator.Evaluate(ctx, text, ectx)
}

// IsTextSincereEnough scores text and compares the composite with minSincerity.
func (s *Service) IsTextSincereEnough(ctx context.Context, text string, minSincerity float64, ectx *greeting.EvaluationContext) (bool, sincerity.Score, error) {
	if err := s.requireText(); err != nil {
		return false, sincerity.Score{}, err
	}
	return s.evaluator.IsSincereEnough(ctx, text, minSincerity, ectx)
}

func (s *Service) requireText() error {
	if s.text == nil {
		return fmt.Errorf("text generation is not configured")
	}
	return nil
}

func (s *Service) beginRun(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (context.Context, uuid.UUID, bool) {
	if s.recorder == nil {
		return ctx, uuid.Nil, false
	}
	id, err := s.recorder.BeginRun(ctx, req, minSincerity, maxRetries)
	if err != nil {
		s.logger.Warn("failed to record greeting run", zap.Error(err))
		return ctx, uuid.Nil, false
	}
	return withRunID(ctx, id), id, true
}

func (s *Service) recordAttempt(ctx context.Context, c orchestrator.Candidate) {
	id, ok := runIDFrom(ctx)
	if !ok {
		return
	}
	if err := s.recorder.RecordAttempt(ctx, id, c); err != nil {
		s.logger.Warn("failed to record greeting attempt",
			zap.String("run_id", id.String()),
			zap.Int("attempt", c.Attempt),
			zap.Error(err))
	}
}

func (s *Service) finishRun(ctx context.Context, id uuid.UUID, outcome *orchestrator.Outcome, runErr error) {
	// The loop may have ended because ctx was cancelled; the run row is
	// still closed.
	if err := s.recorder.FinishRun(context.WithoutCancel(ctx), id, outcome, runErr); err != nil {
		s.logger.Warn("failed to complete greeting run",
			zap.String("run_id", id.String()),
			zap.Error(err))
	}
}
