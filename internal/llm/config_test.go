package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGigaChat, config.Provider)
	assert.Equal(t, "GigaChat", config.GetModel(TierLite))
	assert.Equal(t, "GigaChat", config.GetModel(TierStandard))
}

func TestConfigFor(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", ConfigFor(ProviderGemini).GetModel(TierStandard))
	assert.Equal(t, "gpt-4o-mini", ConfigFor(ProviderOpenAI).GetModel(TierLite))
	assert.Equal(t, ProviderGigaChat, ConfigFor(ProviderGigaChat).Provider)
	assert.Nil(t, ConfigFor("anthropic"))
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
	assert.Equal(t, "fallback-model", config.GetModel(TierStandard))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{Provider: ProviderGemini, Models: map[ModelTier]string{}}
	assert.Equal(t, "", config.GetModel(TierStandard))
}

func TestWithModel(t *testing.T) {
	config := DefaultGeminiConfig()
	newConfig := config.WithModel(TierLite, "custom-model")

	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "custom-model", newConfig.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", newConfig.GetModel(TierStandard))
	assert.Equal(t, config.Temperature, newConfig.Temperature)
}
