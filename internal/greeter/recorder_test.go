package greeter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/llm/llmtest"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
)

type fakeRecorder struct {
	id        uuid.UUID
	beginErr  error
	attempts  []orchestrator.Candidate
	finished  *orchestrator.Outcome
	finishErr error
	runErr    error
	closed    bool
}

func (f *fakeRecorder) BeginRun(context.Context, greeting.Request, float64, int) (uuid.UUID, error) {
	return f.id, f.beginErr
}

func (f *fakeRecorder) RecordAttempt(_ context.Context, id uuid.UUID, c orchestrator.Candidate) error {
	if id != f.id {
		return errors.New("unexpected run id")
	}
	f.attempts = append(f.attempts, c)
	return errors.New("write failed")
}

func (f *fakeRecorder) FinishRun(_ context.Context, _ uuid.UUID, outcome *orchestrator.Outcome, err error) error {
	f.closed = true
	f.finished = outcome
	f.runErr = err
	return f.finishErr
}

func TestRecorder_CapturesRun(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) { return lowScore, nil },
	}
	rec := &fakeRecorder{id: uuid.New(), finishErr: errors.New("db down")}
	svc := NewService(client, nil, Options{Recorder: rec})

	out, err := svc.GenerateGreetingTextOutcome(context.Background(), newYear, 0.6, 2)
	require.NoError(t, err, "recorder failures are not returned")

	assert.Len(t, rec.attempts, 3)
	assert.True(t, rec.closed)
	assert.Same(t, out, rec.finished)
	assert.NoError(t, rec.runErr)
}

func TestRecorder_FinishesFailedRun(t *testing.T) {
	boom := errors.New("unavailable")
	client := &llmtest.MockClient{
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) { return "", boom },
	}
	rec := &fakeRecorder{id: uuid.New()}
	svc := NewService(client, nil, Options{Recorder: rec})

	_, err := svc.GenerateGreetingTextOutcome(context.Background(), newYear, 0.6, 1)
	require.ErrorIs(t, err, orchestrator.ErrGenerationExhausted)

	assert.Len(t, rec.attempts, 2)
	assert.True(t, rec.closed)
	assert.Nil(t, rec.finished)
	assert.ErrorIs(t, rec.runErr, boom)
}

func TestRecorder_BeginFailureSkipsRecording(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) { return highScore, nil },
	}
	rec := &fakeRecorder{beginErr: errors.New("db down")}
	svc := NewService(client, nil, Options{Recorder: rec})

	out, err := svc.GenerateGreetingTextOutcome(context.Background(), newYear, 0.6, 2)
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Empty(t, rec.attempts)
	assert.False(t, rec.closed)
}
