package gen

import (
	"context"
	"fmt"

	"feedpilot/pkg/config"
	"feedpilot/pkg/gen/llm"
	"feedpilot/pkg/gen/internal/llmimpl/anthropic"
	"feedpilot/pkg/gen/internal/llmimpl/google"
	"feedpilot/pkg/gen/internal/llmimpl/ollama"
	"feedpilot/pkg/gen/internal/llmimpl/openai"
)

// Default model per provider, used when the settings leave Model empty.
var defaultModels = map[string]string{
	config.ProviderOpenAI:    "gpt-4o-mini",
	config.ProviderAnthropic: "claude-3-5-haiku-latest",
	config.ProviderOllama:    "llama3.2",
	config.ProviderGemini:    "gemini-2.0-flash",
}

// Secret name per provider for hosted APIs. Ollama runs locally and needs
// no key.
var providerSecrets = map[string]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGemini:    "GEMINI_API_KEY",
}

// NewProviderClient builds the raw provider client selected by the settings.
// Middleware is applied by the caller via llm.Chain.
func NewProviderClient(ctx context.Context, generation *config.Generation, secrets config.Secrets) (llm.Client, error) {
	model := generation.Model
	if model == "" {
		model = defaultModels[generation.Provider]
	}

	if generation.Provider == config.ProviderOllama {
		client, err := ollama.New(generation.Host, model)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	secretName, known := providerSecrets[generation.Provider]
	if !known {
		return nil, fmt.Errorf("unknown generation provider %q", generation.Provider)
	}
	apiKey, err := secrets.Get(secretName)
	if err != nil {
		return nil, fmt.Errorf("provider %s needs an API key: %w", generation.Provider, err)
	}

	switch generation.Provider {
	case config.ProviderOpenAI:
		return openai.New(apiKey, model), nil
	case config.ProviderAnthropic:
		return anthropic.New(apiKey, model), nil
	case config.ProviderGemini:
		return google.New(ctx, apiKey, model)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", generation.Provider)
	}
}
