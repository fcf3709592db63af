package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderCohere = "cohere"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
	ProviderNone   = "none"
)

// Config selects and configures one provider.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderCohere:
		return "command-a-reasoning-08-2025"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOllama:
		return "llama3.1"
	case ProviderMock:
		return "echo"
	}
	return ""
}

// DefaultKeyEnv names the environment variable holding a provider's API key.
func DefaultKeyEnv(provider string) string {
	switch provider {
	case ProviderCohere:
		return "COHERE_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

// Known reports whether name is a supported provider.
func Known(name string) bool {
	switch strings.ToLower(name) {
	case ProviderCohere, ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderMock, ProviderNone, "":
		return true
	}
	return false
}

// New builds the configured provider. A hosted provider without an API key
// is returned as a provider that always fails with ErrUnconfigured, so the
// process still starts and every request takes the fallback path.
func New(ctx context.Context, cfg Config) (Provider, error) {
	name := strings.ToLower(cfg.Provider)
	switch name {
	case ProviderNone, "":
		return unconfiguredProvider{name: ProviderNone, reason: "reasoning disabled"}, nil
	case ProviderMock:
		return EchoProvider{}, nil
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL), nil
	case ProviderCohere, ProviderOpenAI, ProviderGemini:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.APIKey == "" {
		return unconfiguredProvider{name: name, reason: "missing " + DefaultKeyEnv(name)}, nil
	}
	switch name {
	case ProviderCohere:
		return NewCohereProvider(cfg.APIKey, cfg.BaseURL), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
