// Package llm defines the text and image collaborator contracts used by the
// greeting engine, plus Gemini and OpenAI adapters and a rate-limit retry
// decorator shared by every provider.
package llm

// ModelTier selects a model by workload.
type ModelTier string

const (
	// TierLite is for judging: the sincerity rubric call.
	TierLite ModelTier = "lite"
	// TierStandard is for writing greeting text.
	TierStandard ModelTier = "standard"
)

// Provider names a text-generation backend.
type Provider string

const (
	ProviderGigaChat Provider = "gigachat"
	ProviderGemini   Provider = "gemini"
	ProviderOpenAI   Provider = "openai"
)

// Config maps tiers to provider model names.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	BaseURL     string
}

// DefaultConfig returns the GigaChat configuration.
func DefaultConfig() *Config {
	return DefaultGigaChatConfig()
}

// DefaultGigaChatConfig uses the same model for both tiers.
func DefaultGigaChatConfig() *Config {
	return &Config{
		Provider: ProviderGigaChat,
		Models: map[ModelTier]string{
			TierLite:     "GigaChat",
			TierStandard: "GigaChat",
		},
		Temperature: 0.7,
	}
}

// DefaultGeminiConfig returns the Gemini configuration.
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature: 0.7,
	}
}

// DefaultOpenAIConfig returns the OpenAI configuration.
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o",
		},
		Temperature: 0.7,
	}
}

// ConfigFor returns the default configuration of p, or nil for an unknown provider.
func ConfigFor(p Provider) *Config {
	switch p {
	case ProviderGigaChat:
		return DefaultGigaChatConfig()
	case ProviderGemini:
		return DefaultGeminiConfig()
	case ProviderOpenAI:
		return DefaultOpenAIConfig()
	default:
		return nil
	}
}

// GetModel returns the model for tier, falling back to standard then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok && model != "" {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}
