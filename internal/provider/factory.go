package provider

import (
	"fmt"
	"time"
)

// Config holds the settings for constructing a single provider backend.
type Config struct {
	Type   string
	Model  string
	APIKey string
	URL    string
}

// NewEmbedder builds an embedding provider from config. The variant set is
// closed: "openai" and "ollama" (alias "local"). An unsupported type or an
// embedding model with an unknown dimension is a construction error, so a
// misconfigured process fails at startup instead of per-request.
//
// The returned embedder initializes its backend lazily on first use.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Type {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIEmbedModel
		}
		return NewLazyEmbedder("openai", openAIEmbedDimension(model), func() (Embedder, error) {
			return NewOpenAIEmbedder(cfg.APIKey, model), nil
		}), nil

	case "ollama", "local":
		model := cfg.Model
		if model == "" {
			model = defaultOllamaEmbedModel
		}
		dim, ok := ollamaEmbedDimensions[model]
		if !ok {
			return nil, fmt.Errorf("unsupported ollama embedding model: %q", model)
		}
		return NewLazyEmbedder("ollama", dim, func() (Embedder, error) {
			return NewOllamaEmbedder(cfg.URL, model), nil
		}), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider type: %q", cfg.Type)
	}
}

// NewGenerator builds a generation provider from config. The variant set is
// closed: "ollama", "anthropic", and "openai". An unsupported type is a
// construction error. Every backend honors the timeout: ollama through its
// HTTP client, the SDK-backed providers through a per-call context deadline.
func NewGenerator(cfg Config, timeout time.Duration) (Generator, error) {
	switch cfg.Type {
	case "ollama":
		return NewOllamaGenerator(cfg.URL, cfg.Model, timeout), nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic generation provider requires an API key")
		}
		return GeneratorWithTimeout(NewAnthropicGenerator(cfg.APIKey, cfg.Model), timeout), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai generation provider requires an API key")
		}
		return GeneratorWithTimeout(NewOpenAIGenerator(cfg.APIKey, cfg.Model), timeout), nil

	default:
		return nil, fmt.Errorf("unsupported generation provider type: %q", cfg.Type)
	}
}

// EffectiveGeneratorModel returns the model a generator built from cfg will
// use, resolving the per-provider default when cfg.Model is empty.
func EffectiveGeneratorModel(cfg Config) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	switch cfg.Type {
	case "anthropic":
		return defaultAnthropicModel
	case "openai":
		return defaultOpenAIModel
	default:
		return defaultOllamaModel
	}
}
