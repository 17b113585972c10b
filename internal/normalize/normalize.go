// Package normalize builds the canonical text representation of a bug report
// that is fed to the embedding provider. The output is deterministic: the same
// report always produces the same string.
package normalize

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// maxConsoleErrors caps how many console error entries contribute to the text.
	maxConsoleErrors = 5

	// maxFailedRequests caps how many failed network requests contribute to the text.
	maxFailedRequests = 3

	// maxStackLines is the number of stack trace lines kept per console error.
	maxStackLines = 3

	// separator joins the parts of the embedding text. Meaningful to a reader
	// but neutral enough not to confuse the embedding model.
	separator = " | "
)

// ConsoleLog is a single console log entry captured by the reporting client.
type ConsoleLog struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// NetworkLog is a single network request captured by the reporting client.
type NetworkLog struct {
	Method   string  `json:"method"`
	URL      string  `json:"url"`
	Status   int     `json:"status"`
	Duration float64 `json:"duration"`
}

// Metadata holds environment information about where the bug occurred.
type Metadata struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Report is the structured content of a bug report. All fields except Title
// are optional; missing fields simply contribute nothing to the embedding text.
type Report struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	ConsoleLogs []ConsoleLog `json:"console_logs,omitempty"`
	NetworkLogs []NetworkLog `json:"network_logs,omitempty"`
	Metadata    *Metadata    `json:"metadata,omitempty"`
}

// extractConsoleErrors pulls error and warning entries out of console logs.
// Each entry becomes its message joined with the first maxStackLines lines of
// its stack trace. info/log entries are excluded entirely.
func extractConsoleErrors(logs []ConsoleLog) []string {
	var errors []string
	for _, l := range logs {
		level := strings.ToLower(l.Level)
		if level != "error" && level != "warn" {
			continue
		}

		parts := []string{l.Message}
		if l.Stack != "" {
			lines := strings.Split(strings.TrimSpace(l.Stack), "\n")
			if len(lines) > maxStackLines {
				lines = lines[:maxStackLines]
			}
			parts = append(parts, lines...)
		}
		errors = append(errors, strings.Join(parts, separator))
	}

	if len(errors) > maxConsoleErrors {
		errors = errors[:maxConsoleErrors]
	}
	return errors
}

// extractFailedRequests pulls 4xx/5xx requests out of network logs, preserving
// input order. Successful requests are dropped entirely.
func extractFailedRequests(logs []NetworkLog) []string {
	var failed []string
	for _, r := range logs {
		if r.Status < 400 {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s %s returned %d (took %gms)",
			r.Method, r.URL, r.Status, r.Duration))
	}

	if len(failed) > maxFailedRequests {
		failed = failed[:maxFailedRequests]
	}
	return failed
}

// extractEnvironmentInfo builds an environment summary from report metadata.
// Only the URL's path component is kept: the domain may differ per environment,
// and root or path-less URLs carry no signal.
func extractEnvironmentInfo(m *Metadata) string {
	if m == nil {
		return ""
	}

	var parts []string
	if m.Browser != "" {
		parts = append(parts, "Browser: "+m.Browser)
	}
	if m.OS != "" {
		parts = append(parts, "OS: "+m.OS)
	}
	if m.URL != "" {
		if u, err := url.Parse(m.URL); err == nil {
			if path := u.Path; path != "" && path != "/" {
				parts = append(parts, "Page: "+path)
			}
		}
	}
	return strings.Join(parts, separator)
}

// BuildEmbeddingText combines a report's fields into a single string optimized
// for similarity search. Part order is fixed: title, description, console
// errors, failed requests, environment summary. Empty parts are dropped.
func BuildEmbeddingText(r Report) string {
	parts := []string{r.Title}

	if r.Description != "" {
		parts = append(parts, r.Description)
	}

	parts = append(parts, extractConsoleErrors(r.ConsoleLogs)...)
	parts = append(parts, extractFailedRequests(r.NetworkLogs)...)

	if env := extractEnvironmentInfo(r.Metadata); env != "" {
		parts = append(parts, env)
	}

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, separator)
}
