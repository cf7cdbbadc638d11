// Package llmtest provides Func-field fakes of the llm collaborators for tests.
package llmtest

import (
	"context"

	"github.com/jonathan/greeting-personalizer/internal/llm"
)

// MockClient implements llm.Client for testing.
type MockClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GetModelFunc        func(tier llm.ModelTier) string
	CloseFunc           func() error
}

func (m *MockClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "Поздравляем с праздником!", nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return `{"sincerity_score": 0.8, "warmth_score": 0.8, "personalization_score": 0.8, "authenticity_score": 0.8}`, nil
}

func (m *MockClient) GetModel(tier llm.ModelTier) string {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(tier)
	}
	return "mock-model"
}

func (m *MockClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockImageClient implements llm.ImageClient for testing.
type MockImageClient struct {
	GenerateImageFunc func(ctx context.Context, req llm.ImageRequest) ([][]byte, error)
}

// PNGStub is a tiny byte payload returned by the default MockImageClient.
var PNGStub = []byte("\x89PNG\r\n\x1a\nstub")

func (m *MockImageClient) GenerateImage(ctx context.Context, req llm.ImageRequest) ([][]byte, error) {
	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(ctx, req)
	}
	out := make([][]byte, 0, req.Count)
	for i := 0; i < max(req.Count, 1); i++ {
		out = append(out, PNGStub)
	}
	return out, nil
}
