// Package rag turns stored bug history into generation context: mitigation
// suggestions grounded on similar resolved bugs, and one-sentence summaries of
// incoming resolutions.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/bugspotter/intelligence/internal/dedup"
	"github.com/bugspotter/intelligence/internal/provider"
	"github.com/bugspotter/intelligence/internal/pubsub"
	"github.com/bugspotter/intelligence/internal/store"
)

// Similarity is the subset of dedup.Engine the assembler needs.
type Similarity interface {
	FindSimilar(bugID string, thresholdOverride float64, limitOverride int) (*dedup.SimilarResult, error)
}

// Store is the subset of store.DB the assembler needs.
type Store interface {
	GetBug(bugID string) (*store.Bug, error)
	UpdateResolution(bugID, resolution, summary, status string) error
}

// Mitigation is the outcome of a mitigation suggestion request.
type Mitigation struct {
	BugID              string
	Suggestion         string
	BasedOnSimilarBugs bool
}

// ResolutionResult is the outcome of recording a resolution.
type ResolutionResult struct {
	BugID             string
	Status            string
	ResolutionSummary string
}

// Assembler combines the bug store, the similarity engine and a text
// generator.
type Assembler struct {
	store      Store
	similarity Similarity
	generator  provider.Generator
	broker     *pubsub.Broker[dedup.BugEvent]
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithBroker attaches an event broker; UpdateResolution publishes a Resolved
// event after a successful write.
func WithBroker(b *pubsub.Broker[dedup.BugEvent]) Option {
	return func(a *Assembler) { a.broker = b }
}

// NewAssembler creates a new Assembler.
func NewAssembler(st Store, similarity Similarity, generator provider.Generator, opts ...Option) *Assembler {
	a := &Assembler{
		store:      st,
		similarity: similarity,
		generator:  generator,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MitigationSuggestion generates an actionable fix suggestion for a bug. When
// useSimilarBugs is set, resolutions of similar bugs are passed to the
// generator as context; similar bugs without a recorded resolution contribute
// nothing.
func (a *Assembler) MitigationSuggestion(ctx context.Context, bugID string, useSimilarBugs bool) (*Mitigation, error) {
	bug, err := a.store.GetBug(bugID)
	if err != nil {
		return nil, err
	}

	var contextEntries []string
	if useSimilarBugs {
		result, err := a.similarity.FindSimilar(bugID, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("finding similar bugs for %s: %w", bugID, err)
		}
		for _, sb := range result.SimilarBugs {
			if sb.Resolution == "" {
				continue
			}
			contextEntries = append(contextEntries, buildContextEntry(sb.Title, sb.Resolution))
		}
	}

	prompt := buildMitigationPrompt(bug.Title, bug.Description)

	suggestion, err := a.generator.Generate(ctx, prompt, provider.GenerateOptions{
		Context:     contextEntries,
		Temperature: mitigationTemperature,
		MaxTokens:   mitigationMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating mitigation for bug %s: %w", bugID, err)
	}

	return &Mitigation{
		BugID:              bugID,
		Suggestion:         suggestion,
		BasedOnSimilarBugs: len(contextEntries) > 0,
	}, nil
}

// UpdateResolution records how a bug was fixed: it generates a one-sentence
// summary of the resolution, persists both verbatim text and summary, and
// moves the bug to the given terminal status.
func (a *Assembler) UpdateResolution(ctx context.Context, bugID, resolution, status string) (*ResolutionResult, error) {
	if resolution == "" {
		return nil, fmt.Errorf("%w: resolution is required", provider.ErrInvalidInput)
	}
	if !store.ValidResolutionStatus(status) {
		return nil, fmt.Errorf("%w: invalid resolution status %q", provider.ErrInvalidInput, status)
	}

	summary, err := a.generator.Generate(ctx, buildSummaryPrompt(resolution), provider.GenerateOptions{
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing resolution for bug %s: %w", bugID, err)
	}
	summary = strings.TrimSpace(summary)

	if err := a.store.UpdateResolution(bugID, resolution, summary, status); err != nil {
		return nil, err
	}

	if a.broker != nil {
		a.broker.Publish(pubsub.Resolved, dedup.BugEvent{BugID: bugID})
	}

	return &ResolutionResult{
		BugID:             bugID,
		Status:            status,
		ResolutionSummary: summary,
	}, nil
}
