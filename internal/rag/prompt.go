package rag

import (
	"fmt"
	"strings"
)

// Generation parameters. Mitigation suggestions get more room than resolution
// summaries, which are a single sentence.
const (
	mitigationTemperature = 0.3
	mitigationMaxTokens   = 300

	summaryTemperature = 0.3
	summaryMaxTokens   = 100
)

// buildMitigationPrompt renders the user-facing question for a mitigation
// suggestion. The description line is omitted when the bug has none.
func buildMitigationPrompt(title, description string) string {
	parts := []string{fmt.Sprintf("Bug: %s", title)}
	if description != "" {
		parts = append(parts, fmt.Sprintf("Description: %s", description))
	}
	parts = append(parts, "\nProvide a concise, actionable suggestion for how to fix or mitigate this issue.")
	return strings.Join(parts, "\n")
}

// buildSummaryPrompt renders the prompt asking for a one-sentence resolution
// summary.
func buildSummaryPrompt(resolution string) string {
	return fmt.Sprintf("Summarize this bug resolution in one concise sentence:\n\n%s\n\nSummary:", resolution)
}

// buildContextEntry renders one similar resolved bug as a context block.
func buildContextEntry(title, resolution string) string {
	return fmt.Sprintf("Similar bug: %s\nResolution: %s", title, resolution)
}
