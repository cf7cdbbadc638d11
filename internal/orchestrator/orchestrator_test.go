package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/llm/llmtest"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

type mockScorer struct {
	EvaluateFunc func(ctx context.Context, text string, ectx *greeting.EvaluationContext) (sincerity.Score, error)
}

func (m *mockScorer) Evaluate(ctx context.Context, text string, ectx *greeting.EvaluationContext) (sincerity.Score, error) {
	return m.EvaluateFunc(ctx, text, ectx)
}

// uniform returns a score whose composite equals v.
func uniform(v float64) sincerity.Score {
	return sincerity.Score{Sincerity: v, Warmth: v, Personalization: v, Authenticity: v}
}

// numberedTexts makes the client return "text-1", "text-2", ...
func numberedTexts(calls *int) *llmtest.MockClient {
	return &llmtest.MockClient{
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			*calls++
			return fmt.Sprintf("text-%d", *calls), nil
		},
	}
}

// scoresByText maps "text-N" to scores[N-1].
func scoresByText(scores ...float64) *mockScorer {
	return &mockScorer{
		EvaluateFunc: func(_ context.Context, text string, _ *greeting.EvaluationContext) (sincerity.Score, error) {
			var n int
			if _, err := fmt.Sscanf(text, "text-%d", &n); err != nil {
				return sincerity.Score{}, err
			}
			return uniform(scores[n-1]), nil
		},
	}
}

var baseRequest = greeting.Request{EventDate: "15.06.2025", ClientName: "Иван"}

func newOrchestrator(client llm.Client, scorer Scorer, opts ...Option) *Orchestrator {
	return New(client, scorer, greeting.NewComposer(greeting.Russian), opts...)
}

func TestGenerate_MaxRetriesCountsAdditionalAttempts(t *testing.T) {
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.1, 0.2, 0.3, 0.4))

	out, err := o.Generate(context.Background(), baseRequest, 0.9, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, calls, "max_retries=2 means one attempt plus two retries")
	assert.Equal(t, 3, out.Attempts)
	assert.Len(t, out.Candidates, 3)
}

func TestGenerate_ZeroRetriesSingleAttemptRegardlessOfScore(t *testing.T) {
	for _, score := range []float64{0.0, 0.3, 0.95} {
		t.Run(fmt.Sprint(score), func(t *testing.T) {
			calls := 0
			o := newOrchestrator(numberedTexts(&calls), scoresByText(score))

			out, err := o.Generate(context.Background(), baseRequest, 0.6, 0)
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, 1, out.Attempts)
			assert.Equal(t, "text-1", out.Text)
			assert.InDelta(t, score, out.Composite, 1e-9)
			assert.Equal(t, score >= 0.6, out.Accepted)
		})
	}
}

func TestGenerate_AcceptsEarly(t *testing.T) {
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.3, 0.7, 0.9))

	out, err := o.Generate(context.Background(), baseRequest, 0.6, 5)
	require.NoError(t, err)

	assert.True(t, out.Accepted)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "text-2", out.Text)
	assert.InDelta(t, 0.7, out.Composite, 1e-9)
	assert.True(t, out.Candidates[1].Accepted)
	assert.False(t, out.Candidates[0].Accepted)
}

func TestGenerate_ThresholdIsInclusive(t *testing.T) {
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.5))

	out, err := o.Generate(context.Background(), baseRequest, uniform(0.5).Composite(), 3)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, 1, out.Attempts)
}

func TestGenerate_ExhaustedReturnsBestNotLast(t *testing.T) {
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.2, 0.5, 0.3))

	out, err := o.Generate(context.Background(), baseRequest, 0.9, 2)
	require.NoError(t, err)

	assert.False(t, out.Accepted)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "text-2", out.Text)
	assert.InDelta(t, 0.5, out.Composite, 1e-9)
	assert.InDelta(t, 0.5, out.Score.Composite(), 1e-9)
}

func TestGenerate_TiesGoToEarliest(t *testing.T) {
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.1, 0.4, 0.4, 0.4))

	out, err := o.Generate(context.Background(), baseRequest, 0.9, 3)
	require.NoError(t, err)
	assert.Equal(t, "text-2", out.Text)
	assert.Equal(t, 4, out.Attempts)
}

func TestGenerate_GenerationFailureAbsorbed(t *testing.T) {
	calls := 0
	client := &llmtest.MockClient{
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("503 service unavailable")
			}
			return fmt.Sprintf("text-%d", calls), nil
		},
	}
	o := newOrchestrator(client, scoresByText(0, 0.4, 0.3))

	out, err := o.Generate(context.Background(), baseRequest, 0.9, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "text-2", out.Text)
	require.Len(t, out.Candidates, 3)
	assert.Equal(t, "503 service unavailable", out.Candidates[0].Error)
	assert.Empty(t, out.Candidates[0].Text)
	assert.Zero(t, out.Candidates[0].Composite)
}

func TestGenerate_FailedAttemptIsNeverSelected(t *testing.T) {
	calls := 0
	client := &llmtest.MockClient{
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("timeout")
			}
			return "text-2", nil
		},
	}
	o := newOrchestrator(client, scoresByText(0, 0.0))

	out, err := o.Generate(context.Background(), baseRequest, 0.9, 1)
	require.NoError(t, err)
	assert.Equal(t, "text-2", out.Text)
	assert.Zero(t, out.Composite)
}

func TestGenerate_AllAttemptsFail(t *testing.T) {
	calls := 0
	boom := errors.New("upstream down")
	client := &llmtest.MockClient{
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			calls++
			return "", boom
		},
	}
	scorer := &mockScorer{EvaluateFunc: func(context.Context, string, *greeting.EvaluationContext) (sincerity.Score, error) {
		t.Fatal("scorer must not be called without text")
		return sincerity.Score{}, nil
	}}

	_, err := newOrchestrator(client, scorer).Generate(context.Background(), baseRequest, 0.6, 2)
	require.Error(t, err)

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrGenerationExhausted)
	assert.ErrorIs(t, err, boom)
	var ge *GenerationExhaustedError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 3, ge.Attempts)
}

func TestGenerate_EmptyCompletionCountsAsFailure(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "   ", nil
		},
	}
	_, err := newOrchestrator(client, scoresByText()).Generate(context.Background(), baseRequest, 0.6, 1)
	assert.ErrorIs(t, err, ErrGenerationExhausted)
}

func TestGenerate_EvaluationErrorSurfaces(t *testing.T) {
	calls := 0
	parseErr := &sincerity.EvaluationParseError{Content: "nope", Reason: "invalid JSON"}
	scorer := &mockScorer{EvaluateFunc: func(context.Context, string, *greeting.EvaluationContext) (sincerity.Score, error) {
		return sincerity.Score{}, parseErr
	}}

	_, err := newOrchestrator(numberedTexts(&calls), scorer).Generate(context.Background(), baseRequest, 0.6, 3)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var pe *sincerity.EvaluationParseError
	assert.True(t, errors.As(err, &pe))
}

func TestGenerate_InvalidArguments(t *testing.T) {
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(1))

	_, err := o.Generate(context.Background(), baseRequest, 0.6, -1)
	var ve *greeting.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "max_retries", ve.Field)

	_, err = o.Generate(context.Background(), baseRequest, 1.5, 1)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "min_sincerity", ve.Field)

	_, err = o.Generate(context.Background(), greeting.Request{EventDate: "2025-06-15"}, 0.6, 1)
	var pe *greeting.ParseError
	assert.True(t, errors.As(err, &pe))

	assert.Zero(t, calls)
}

func TestGenerate_PassesContextAndPrompt(t *testing.T) {
	var gotPrompt string
	var gotTier llm.ModelTier
	client := &llmtest.MockClient{
		GenerateContentFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			gotPrompt, gotTier = prompt, tier
			return "С 8 Марта!", nil
		},
	}
	var gotCtx *greeting.EvaluationContext
	scorer := &mockScorer{EvaluateFunc: func(_ context.Context, _ string, ectx *greeting.EvaluationContext) (sincerity.Score, error) {
		gotCtx = ectx
		return uniform(1), nil
	}}

	req := greeting.Request{EventDate: "08.03.2025", ClientSegment: greeting.SegmentLoyal}
	out, err := newOrchestrator(client, scorer).Generate(context.Background(), req, 0.6, 0)
	require.NoError(t, err)

	assert.Equal(t, llm.TierStandard, gotTier)
	assert.Contains(t, gotPrompt, "Международный женский день")
	require.NotNil(t, gotCtx)
	assert.Equal(t, greeting.EvaluationContext{
		EventCategory: greeting.WomensDay,
		ClientSegment: greeting.SegmentLoyal,
		Tone:          greeting.ToneFormal,
	}, *gotCtx)
	assert.Equal(t, greeting.WomensDay, out.Category)
}

func TestGenerate_ObserverSeesEveryAttempt(t *testing.T) {
	calls := 0
	var seen []int
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.1, 0.2, 0.8),
		WithObserver(func(_ context.Context, c Candidate) { seen = append(seen, c.Attempt) }),
		WithLogger(nil))

	out, err := o.Generate(context.Background(), baseRequest, 0.6, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 3, out.Attempts)
}

func TestGenerate_LogsAttemptsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	calls := 0
	o := newOrchestrator(numberedTexts(&calls), scoresByText(0.3, 0.9), WithLogger(zap.New(core)))

	_, err := o.Generate(context.Background(), baseRequest, 0.6, 2)
	require.NoError(t, err)

	scored := logs.FilterMessage("greeting attempt scored").All()
	require.Len(t, scored, 2)
	for _, entry := range scored {
		assert.Equal(t, zapcore.DebugLevel, entry.Level)
	}
	assert.Equal(t, int64(2), scored[1].ContextMap()["attempt"])
}

func TestGenerate_CancelledContext(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	scorer := &mockScorer{EvaluateFunc: func(context.Context, string, *greeting.EvaluationContext) (sincerity.Score, error) {
		cancel()
		return uniform(0.1), nil
	}}

	_, err := newOrchestrator(numberedTexts(&calls), scorer).Generate(ctx, baseRequest, 0.9, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
