// Package dedup implements duplicate detection over bug report embeddings:
// ingesting a report produces a stored vector, and similarity queries against
// stored vectors classify duplicates with a two-threshold policy.
package dedup

import (
	"context"
	"fmt"

	"github.com/bugspotter/intelligence/internal/normalize"
	"github.com/bugspotter/intelligence/internal/provider"
	"github.com/bugspotter/intelligence/internal/pubsub"
	"github.com/bugspotter/intelligence/internal/store"
	"github.com/bugspotter/intelligence/internal/vector"
)

// Index is the subset of store.DB used by the dedup engine.
type Index interface {
	UpsertBug(bug *store.Bug) error
	GetBug(bugID string) (*store.Bug, error)
	QueryNearest(query []float32, limit int, threshold float64) ([]store.SimilarBug, error)
}

const (
	// defaultSimilarityThreshold is the minimum similarity for a bug to count
	// as related at all.
	defaultSimilarityThreshold = 0.75

	// defaultDuplicateThreshold is the stricter bound above which the top
	// match classifies the query bug as a duplicate. Always configured
	// strictly greater than the similarity threshold.
	defaultDuplicateThreshold = 0.90

	// defaultMaxSimilarBugs caps how many similar bugs a query returns.
	defaultMaxSimilarBugs = 5
)

// BugEvent is published after a bug operation completes.
type BugEvent struct {
	BugID string
	Title string
}

// Engine orchestrates normalization, embedding and the similarity index.
type Engine struct {
	embedder     provider.Embedder
	index        Index
	broker       *pubsub.Broker[BugEvent]
	simThreshold float64
	dupThreshold float64
	maxSimilar   int
}

// AnalyzeResult is the outcome of ingesting a bug report.
type AnalyzeResult struct {
	BugID              string
	EmbeddingGenerated bool
}

// SimilarResult is the outcome of a similarity query.
type SimilarResult struct {
	BugID         string
	IsDuplicate   bool
	SimilarBugs   []store.SimilarBug
	ThresholdUsed float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSimilarityThreshold sets the minimum similarity for search results.
func WithSimilarityThreshold(t float64) Option {
	return func(e *Engine) { e.simThreshold = t }
}

// WithDuplicateThreshold sets the similarity bound for duplicate classification.
func WithDuplicateThreshold(t float64) Option {
	return func(e *Engine) { e.dupThreshold = t }
}

// WithMaxSimilarBugs sets the maximum number of similar bugs to return.
func WithMaxSimilarBugs(n int) Option {
	return func(e *Engine) { e.maxSimilar = n }
}

// WithBroker attaches an event broker; AnalyzeAndStore publishes an Analyzed
// event after a successful write.
func WithBroker(b *pubsub.Broker[BugEvent]) Option {
	return func(e *Engine) { e.broker = b }
}

// NewEngine creates a new dedup Engine.
func NewEngine(embedder provider.Embedder, index Index, opts ...Option) *Engine {
	e := &Engine{
		embedder:     embedder,
		index:        index,
		simThreshold: defaultSimilarityThreshold,
		dupThreshold: defaultDuplicateThreshold,
		maxSimilar:   defaultMaxSimilarBugs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeAndStore normalizes a bug report, embeds it and upserts the record.
// Persistence happens only after embedding succeeds: an embedding failure
// leaves no partial state. No similarity search runs here, so write
// throughput never pays read-side nearest-neighbor cost.
func (e *Engine) AnalyzeAndStore(ctx context.Context, bugID string, report normalize.Report) (*AnalyzeResult, error) {
	if bugID == "" {
		return nil, fmt.Errorf("%w: bug_id is required", provider.ErrInvalidInput)
	}
	if report.Title == "" {
		return nil, fmt.Errorf("%w: title is required", provider.ErrInvalidInput)
	}

	text := normalize.BuildEmbeddingText(report)

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding bug %s: %w", bugID, err)
	}

	if len(vec) != e.embedder.Dimension() {
		return nil, fmt.Errorf("embedding for bug %s has %d dimensions, %s declares %d",
			bugID, len(vec), e.embedder.Name(), e.embedder.Dimension())
	}

	err = e.index.UpsertBug(&store.Bug{
		BugID:          bugID,
		Title:          report.Title,
		Description:    report.Description,
		Embedding:      vector.Encode(vec),
		EmbeddingModel: e.embedder.Name(),
	})
	if err != nil {
		return nil, fmt.Errorf("storing bug %s: %w", bugID, err)
	}

	if e.broker != nil {
		e.broker.Publish(pubsub.Analyzed, BugEvent{BugID: bugID, Title: report.Title})
	}

	return &AnalyzeResult{BugID: bugID, EmbeddingGenerated: true}, nil
}

// FindSimilar returns the bugs most similar to the given bug's stored
// embedding and classifies it as a duplicate when the top match clears the
// duplicate threshold. A zero thresholdOverride or limitOverride means "use
// the configured value".
func (e *Engine) FindSimilar(bugID string, thresholdOverride float64, limitOverride int) (*SimilarResult, error) {
	bug, err := e.index.GetBug(bugID)
	if err != nil {
		return nil, err
	}
	if len(bug.Embedding) == 0 {
		return nil, fmt.Errorf("%w: bug %s has no embedding", store.ErrNotFound, bugID)
	}

	threshold := e.simThreshold
	if thresholdOverride > 0 {
		threshold = thresholdOverride
	}
	limit := e.maxSimilar
	if limitOverride > 0 {
		limit = limitOverride
	}

	// Fetch one extra: the bug matches itself.
	candidates, err := e.index.QueryNearest(vector.Decode(bug.Embedding), limit+1, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching similar bugs for %s: %w", bugID, err)
	}

	// Self-exclusion is unconditional, however many self-matches came back.
	similar := candidates[:0:0]
	for _, c := range candidates {
		if c.BugID == bugID {
			continue
		}
		similar = append(similar, c)
	}
	if len(similar) > limit {
		similar = similar[:limit]
	}

	isDuplicate := len(similar) > 0 && similar[0].Similarity >= e.dupThreshold

	return &SimilarResult{
		BugID:         bugID,
		IsDuplicate:   isDuplicate,
		SimilarBugs:   similar,
		ThresholdUsed: threshold,
	}, nil
}
