// Package pipeline runs the asynchronous duplicate-alert workflow: it watches
// for freshly analyzed bugs, checks them against the similarity index, and
// alerts a webhook when the top match clears the duplicate threshold.
// Ingestion never waits on any of this.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/bugspotter/intelligence/internal/dedup"
	"github.com/bugspotter/intelligence/internal/notify"
	"github.com/bugspotter/intelligence/internal/pubsub"
	"github.com/bugspotter/intelligence/internal/retry"
)

// Similarity is the subset of dedup.Engine the watcher needs.
type Similarity interface {
	FindSimilar(bugID string, thresholdOverride float64, limitOverride int) (*dedup.SimilarResult, error)
}

// Deps holds the dependencies for the Watcher.
type Deps struct {
	Similarity Similarity
	Notifier   notify.Notifier
	Broker     *pubsub.Broker[dedup.BugEvent]
	Logger     *slog.Logger

	// Retry is the webhook delivery schedule. The zero value uses the retry
	// package defaults.
	Retry retry.Policy
}

// Watcher consumes analyzed-bug events and raises duplicate alerts.
type Watcher struct {
	deps Deps
}

// New creates a new Watcher with the given dependencies.
func New(deps Deps) *Watcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Watcher{deps: deps}
}

// Run subscribes to the broker and processes events until the context is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	events := w.deps.Broker.Subscribe(ctx)
	w.deps.Logger.Info("duplicate watcher started, listening for events")

	for {
		select {
		case <-ctx.Done():
			w.deps.Logger.Info("duplicate watcher shutting down", "reason", ctx.Err())
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				w.deps.Logger.Info("event channel closed")
				return nil
			}
			if evt.Type != pubsub.Analyzed {
				continue
			}
			w.handleAnalyzed(ctx, evt.Payload)
		}
	}
}

func (w *Watcher) handleAnalyzed(ctx context.Context, bug dedup.BugEvent) {
	logger := w.deps.Logger.With("bug_id", bug.BugID)

	start := time.Now()
	result, err := w.deps.Similarity.FindSimilar(bug.BugID, 0, 0)
	if err != nil {
		logger.Error("similarity check failed", "error", err, "duration", time.Since(start))
		return
	}

	logger.Info("similarity check complete",
		"similar", len(result.SimilarBugs),
		"is_duplicate", result.IsDuplicate,
		"duration", time.Since(start),
	)

	if !result.IsDuplicate || w.deps.Notifier == nil {
		return
	}

	alert := notify.Alert{
		BugID:   bug.BugID,
		Title:   bug.Title,
		Matches: result.SimilarBugs,
	}

	err = w.deps.Retry.Do(ctx, func() error {
		return w.deps.Notifier.Notify(ctx, alert)
	})
	if err != nil {
		logger.Error("duplicate alert delivery failed", "error", err)
		return
	}
	logger.Info("duplicate alert sent", "matches", len(alert.Matches))
}
