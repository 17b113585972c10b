package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bugspotter/intelligence/internal/api"
	"github.com/bugspotter/intelligence/internal/config"
	"github.com/bugspotter/intelligence/internal/notify"
	"github.com/bugspotter/intelligence/internal/pipeline"
)

var (
	serveAddr   string
	serveNotify string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the duplicate watcher",
	Long: `Start the bug intelligence HTTP API. The main BugSpotter app posts
new bugs to /api/v1/bugs/analyze and resolutions to
/api/v1/bugs/{bug_id}/resolution.

A background watcher checks every analyzed bug against the similarity
index and sends duplicate alerts to the configured webhooks.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveNotify, "notify", "", "notification target: slack, discord, or both")
	rootCmd.AddCommand(serveCmd)
}

// createNotifier builds a Notifier from config and flag override. Returns nil
// when no webhook is configured.
func createNotifier(cfg *config.Config, notifyFlag string) (notify.Notifier, error) {
	notifyType := notifyFlag
	if notifyType == "" {
		notifyType = cfg.Notify.Type
	}
	if notifyType == "" {
		hasSlack := cfg.Notify.SlackWebhook != ""
		hasDiscord := cfg.Notify.DiscordWebhook != ""
		switch {
		case hasSlack && hasDiscord:
			notifyType = "both"
		case hasSlack:
			notifyType = "slack"
		case hasDiscord:
			notifyType = "discord"
		default:
			return nil, nil // no notification configured
		}
	}
	return notify.NewNotifier(notifyType, cfg.Notify.SlackWebhook, cfg.Notify.DiscordWebhook)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := initComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing components: %w", err)
	}
	defer c.Store.Close()

	n, err := createNotifier(cfg, serveNotify)
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}
	if n == nil {
		logger.Info("no webhook configured, duplicate alerts disabled")
	}

	watcher := pipeline.New(pipeline.Deps{
		Similarity: c.Engine,
		Notifier:   n,
		Broker:     c.Broker,
		Logger:     logger,
		Retry:      cfg.Notify.RetryPolicy(),
	})

	server := api.New(api.Deps{
		Analyzer:   c.Engine,
		Similarity: c.Engine,
		Assembler:  c.Assembler,
		Store:      c.Store,
		Generator:  c.Generator,
		Logger:     logger,
		LLMType:    cfg.Providers.LLM.Type,
		LLMModel:   c.LLMModel,
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("duplicate watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
