package models

import (
	"context"
	"fmt"
)

// Default model per provider when none is named on the command line.
var defaultModels = map[string]string{
	"openai":    "gpt-4o",
	"anthropic": "claude-sonnet-4-0",
	"gemini":    "gemini-2.0-flash",
	"ollama":    "llama3.1",
	"scripted":  "scripted",
}

// DefaultModel returns the default model name for a provider, or an empty
// string for an unknown one.
func DefaultModel(provider string) string {
	return defaultModels[canonicalProvider(provider)]
}

func canonicalProvider(provider string) string {
	switch provider {
	case "anthropic", "claude":
		return "anthropic"
	case "gemini", "google":
		return "gemini"
	default:
		return provider
	}
}

// NewProvider constructs the ChatModel for a provider name. A missing
// credential surfaces as *AuthenticationError here, before any query runs.
func NewProvider(ctx context.Context, provider, model string) (ChatModel, error) {
	name := canonicalProvider(provider)
	if model == "" {
		model = defaultModels[name]
	}

	switch name {
	case "openai":
		return NewOpenAIModel(model)
	case "anthropic":
		return NewAnthropicModel(model)
	case "gemini":
		return NewGeminiModel(ctx, model)
	case "ollama":
		return NewOllamaModel(model)
	case "scripted":
		return NewScriptedModel(TextStep("scripted model: no steps configured")), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
