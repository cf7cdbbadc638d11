package sincerity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/logging"
	"github.com/jonathan/greeting-personalizer/internal/prompts"
)

// Evaluator judges greeting text through a text-generation collaborator.
// It keeps no state between calls.
type Evaluator struct {
	client llm.Client
	logger *zap.Logger
}

// NewEvaluator returns an Evaluator that sends rubric prompts to client.
func NewEvaluator(client llm.Client, logger *zap.Logger) *Evaluator {
	return &Evaluator{client: client, logger: logging.OrNop(logger)}
}

// Evaluate scores text. Blank text scores zero on every metric without a
// collaborator call. Collaborator failures come back as
// *greeting.CollaboratorError; malformed replies as *EvaluationParseError.
func (e *Evaluator) Evaluate(ctx context.Context, text string, ectx *greeting.EvaluationContext) (Score, error) {
	if strings.TrimSpace(text) == "" {
		return Score{}, nil
	}

	prompt := BuildPrompt(text, ectx)
	raw, err := e.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return Score{}, &greeting.CollaboratorError{Op: "evaluate sincerity", Err: err}
	}

	score, err := ParseRubric(raw)
	if err != nil {
		e.logger.Warn("sincerity reply rejected", zap.Error(err))
		return Score{}, err
	}

	e.logger.Debug("sincerity evaluated",
		zap.Float64("sincerity", score.Sincerity),
		zap.Float64("warmth", score.Warmth),
		zap.Float64("personalization", score.Personalization),
		zap.Float64("authenticity", score.Authenticity),
		zap.Float64("composite", score.Composite()))
	return score, nil
}

// IsSincereEnough evaluates text and reports whether its composite reaches
// minSincerity (inclusive).
func (e *Evaluator) IsSincereEnough(ctx context.Context, text string, minSincerity float64, ectx *greeting.EvaluationContext) (bool, Score, error) {
	score, err := e.Evaluate(ctx, text, ectx)
	if err != nil {
		return false, Score{}, err
	}
	return score.Meets(minSincerity), score, nil
}

// BuildPrompt renders the rubric prompt with optional context lines.
func BuildPrompt(text string, ectx *greeting.EvaluationContext) string {
	var contextBlock string
	if ectx != nil {
		var lines []string
		if ectx.EventCategory != "" {
			lines = append(lines, "Тип события: "+greeting.CategoryName(ectx.EventCategory))
		}
		if ectx.ClientSegment != "" {
			lines = append(lines, "Сегмент клиента: "+string(ectx.ClientSegment))
		}
		if ectx.Tone != "" {
			lines = append(lines, "Требуемый тон: "+greeting.ToneDescription(ectx.Tone))
		}
		if len(lines) > 0 {
			contextBlock = strings.Join(lines, "\n") + "\n\n"
		}
	}

	tmpl := prompts.MustGet(prompts.SincerityFile, "evaluate-sincerity")
	return prompts.Format(tmpl, map[string]string{
		"Context": contextBlock,
		"Text":    text,
	})
}
