// Package config loads the YAML configuration, expanding ${VAR} environment
// references and applying defaults.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bugspotter/intelligence/internal/retry"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Notify    NotifyConfig    `yaml:"notify"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ProviderConfig holds settings for a single provider (embedding or LLM).
type ProviderConfig struct {
	Type   string `yaml:"type"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
}

// ProvidersConfig groups embedding and LLM provider configs.
type ProvidersConfig struct {
	Embedding         ProviderConfig `yaml:"embedding"`
	LLM               ProviderConfig `yaml:"llm"`
	RequestTimeoutRaw string         `yaml:"request_timeout"`
}

// DedupConfig holds similarity search parameters.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DuplicateThreshold  float64 `yaml:"duplicate_threshold"`
	MaxSimilarBugs      int     `yaml:"max_similar_bugs"`
}

// NotifyConfig holds duplicate-alert settings.
type NotifyConfig struct {
	Type           string `yaml:"type"`
	SlackWebhook   string `yaml:"slack_webhook"`
	DiscordWebhook string `yaml:"discord_webhook"`

	// Delivery retry schedule. Unset fields use the retry package defaults.
	MaxAttempts       int    `yaml:"max_attempts"`
	RetryBaseDelayRaw string `yaml:"retry_base_delay"`
	RetryMaxDelayRaw  string `yaml:"retry_max_delay"`
}

// RetryPolicy returns the webhook delivery retry schedule. The raw durations
// are checked during validation, so parse failures here only occur on a
// hand-built Config and fall back to the defaults.
func (n NotifyConfig) RetryPolicy() retry.Policy {
	base, _ := time.ParseDuration(n.RetryBaseDelayRaw)
	max, _ := time.ParseDuration(n.RetryMaxDelayRaw)
	return retry.Policy{
		MaxAttempts: n.MaxAttempts,
		BaseDelay:   base,
		MaxDelay:    max,
	}
}

// StoreConfig holds storage settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RequestTimeout returns the parsed provider request timeout.
func (p ProvidersConfig) RequestTimeout() (time.Duration, error) {
	if p.RequestTimeoutRaw == "" {
		return 120 * time.Second, nil
	}
	return time.ParseDuration(p.RequestTimeoutRaw)
}

// envVarPattern matches ${VAR} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} placeholders with environment variable values.
// Returns an error if any referenced variable is not set.
func expandEnvVars(data []byte) ([]byte, error) {
	var missing []string

	result := envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		val, ok := os.LookupEnv(string(varName))
		if !ok {
			missing = append(missing, string(varName))
			return match
		}
		return []byte(val)
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// Load reads and parses a config file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses config from raw YAML bytes, expanding env vars and validating.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvVars(data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Dedup.SimilarityThreshold == 0 {
		cfg.Dedup.SimilarityThreshold = 0.75
	}
	if cfg.Dedup.DuplicateThreshold == 0 {
		cfg.Dedup.DuplicateThreshold = 0.90
	}
	if cfg.Dedup.MaxSimilarBugs == 0 {
		cfg.Dedup.MaxSimilarBugs = 5
	}
	if cfg.Providers.Embedding.Type == "" {
		cfg.Providers.Embedding.Type = "local"
	}
	if cfg.Providers.LLM.Type == "" {
		cfg.Providers.LLM.Type = "ollama"
	}
	if cfg.Providers.RequestTimeoutRaw == "" {
		cfg.Providers.RequestTimeoutRaw = "120s"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.bugspotter/bugs.db"
	}
}

func validate(cfg *Config) error {
	if cfg.Dedup.SimilarityThreshold < 0 || cfg.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1, got %f", cfg.Dedup.SimilarityThreshold)
	}
	if cfg.Dedup.DuplicateThreshold < 0 || cfg.Dedup.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold must be between 0 and 1, got %f", cfg.Dedup.DuplicateThreshold)
	}
	if cfg.Dedup.DuplicateThreshold <= cfg.Dedup.SimilarityThreshold {
		return fmt.Errorf("duplicate_threshold (%f) must be greater than similarity_threshold (%f)",
			cfg.Dedup.DuplicateThreshold, cfg.Dedup.SimilarityThreshold)
	}
	if cfg.Dedup.MaxSimilarBugs < 1 {
		return fmt.Errorf("max_similar_bugs must be at least 1, got %d", cfg.Dedup.MaxSimilarBugs)
	}

	if _, err := time.ParseDuration(cfg.Providers.RequestTimeoutRaw); err != nil {
		return fmt.Errorf("invalid request_timeout %q: %w", cfg.Providers.RequestTimeoutRaw, err)
	}

	validEmbedTypes := map[string]bool{"openai": true, "ollama": true, "local": true, "": true}
	if !validEmbedTypes[cfg.Providers.Embedding.Type] {
		return fmt.Errorf("unsupported embedding provider type: %s", cfg.Providers.Embedding.Type)
	}

	validLLMTypes := map[string]bool{"openai": true, "ollama": true, "anthropic": true, "": true}
	if !validLLMTypes[cfg.Providers.LLM.Type] {
		return fmt.Errorf("unsupported LLM provider type: %s", cfg.Providers.LLM.Type)
	}

	validNotifyTypes := map[string]bool{"slack": true, "discord": true, "both": true, "": true}
	if !validNotifyTypes[cfg.Notify.Type] {
		return fmt.Errorf("unsupported notifier type: %s", cfg.Notify.Type)
	}

	for _, raw := range []string{cfg.Notify.RetryBaseDelayRaw, cfg.Notify.RetryMaxDelayRaw} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid notify retry delay %q: %w", raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("notify retry delay must be positive, got %q", raw)
		}
	}

	return nil
}
