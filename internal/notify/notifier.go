// Package notify delivers duplicate alerts to chat webhooks. An alert fires
// when an incoming bug's top similarity match clears the duplicate threshold.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bugspotter/intelligence/internal/store"
)

// Alert describes a freshly analyzed bug that looks like a duplicate of
// existing bugs.
type Alert struct {
	BugID   string
	Title   string
	Matches []store.SimilarBug
}

// Notifier sends duplicate alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// MultiNotifier fans an alert out to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a MultiNotifier from the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify sends the alert to all configured notifiers. Errors from individual
// notifiers are logged but do not stop delivery to the rest; the last error is
// returned.
func (m *MultiNotifier) Notify(ctx context.Context, alert Alert) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			slog.Warn("notifier error", "bug_id", alert.BugID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// NewNotifier creates a Notifier based on notifyType.
// Supported types: "slack", "discord", "both".
func NewNotifier(notifyType string, slackURL, discordURL string) (Notifier, error) {
	switch notifyType {
	case "slack":
		if slackURL == "" {
			return nil, fmt.Errorf("slack webhook URL is required for slack notifier")
		}
		return NewSlackNotifier(slackURL), nil
	case "discord":
		if discordURL == "" {
			return nil, fmt.Errorf("discord webhook URL is required for discord notifier")
		}
		return NewDiscordNotifier(discordURL), nil
	case "both":
		if slackURL == "" {
			return nil, fmt.Errorf("slack webhook URL is required for 'both' notifier")
		}
		if discordURL == "" {
			return nil, fmt.Errorf("discord webhook URL is required for 'both' notifier")
		}
		return NewMultiNotifier(
			NewSlackNotifier(slackURL),
			NewDiscordNotifier(discordURL),
		), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %q", notifyType)
	}
}
