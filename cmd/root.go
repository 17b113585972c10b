// Package cmd implements the CLI for the bug intelligence service.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bugspotter/intelligence/internal/config"
	"github.com/bugspotter/intelligence/internal/dedup"
	"github.com/bugspotter/intelligence/internal/provider"
	"github.com/bugspotter/intelligence/internal/pubsub"
	"github.com/bugspotter/intelligence/internal/rag"
	"github.com/bugspotter/intelligence/internal/store"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "intelligence",
	Short: "Bug deduplication and mitigation service for BugSpotter",
	Long: `Intelligence stores incoming bug reports as vector embeddings,
finds duplicates via similarity search, and generates AI mitigation
suggestions grounded on how similar bugs were resolved.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default %s)", defaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bugspotter/config.yaml"
	}
	return home + "/.bugspotter/config.yaml"
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
	}
	return config.Load(path)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home + path[1:]
	}
	return path
}

// components holds initialized components for use by subcommands.
type components struct {
	Config    *config.Config
	Store     *store.DB
	Embedder  provider.Embedder
	Generator provider.Generator
	Engine    *dedup.Engine
	Assembler *rag.Assembler
	Broker    *pubsub.Broker[dedup.BugEvent]
	Logger    *slog.Logger

	// LLMModel is the model the generator actually uses, with provider
	// defaults resolved.
	LLMModel string
}

// initComponents creates all components from config. A misconfigured provider
// fails here, before anything starts serving.
func initComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{
		Config: cfg,
		Logger: logger,
	}

	db, err := store.Open(expandHome(cfg.Store.Path))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	c.Store = db

	timeout, err := cfg.Providers.RequestTimeout()
	if err != nil {
		return nil, fmt.Errorf("parsing request timeout: %w", err)
	}

	c.Embedder, err = provider.NewEmbedder(provider.Config{
		Type:   cfg.Providers.Embedding.Type,
		Model:  cfg.Providers.Embedding.Model,
		APIKey: cfg.Providers.Embedding.APIKey,
		URL:    cfg.Providers.Embedding.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	genCfg := provider.Config{
		Type:   cfg.Providers.LLM.Type,
		Model:  cfg.Providers.LLM.Model,
		APIKey: cfg.Providers.LLM.APIKey,
		URL:    cfg.Providers.LLM.URL,
	}
	c.Generator, err = provider.NewGenerator(genCfg, timeout)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	c.LLMModel = provider.EffectiveGeneratorModel(genCfg)

	c.Broker = pubsub.NewBroker[dedup.BugEvent]()

	c.Engine = dedup.NewEngine(c.Embedder, db,
		dedup.WithSimilarityThreshold(cfg.Dedup.SimilarityThreshold),
		dedup.WithDuplicateThreshold(cfg.Dedup.DuplicateThreshold),
		dedup.WithMaxSimilarBugs(cfg.Dedup.MaxSimilarBugs),
		dedup.WithBroker(c.Broker),
	)

	c.Assembler = rag.NewAssembler(db, c.Engine, c.Generator, rag.WithBroker(c.Broker))

	return c, nil
}
