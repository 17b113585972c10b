package provider

import (
	"context"
	"sync"
)

// LazyEmbedder defers backend construction until first use. Embedding backends
// can be heavy to warm up (remote connections, server-side model loads), so
// construction happens on the first Embed/EmbedBatch call. The sync.Once
// guarantees exactly one construction even when concurrent callers race on
// first use; after that the backend is shared read-only. A construction error
// is sticky and returned to every caller.
type LazyEmbedder struct {
	name      string
	dimension int
	construct func() (Embedder, error)

	once    sync.Once
	backend Embedder
	err     error
}

// NewLazyEmbedder wraps a backend constructor. Name and dimension are declared
// up front so they are available without initializing the backend.
func NewLazyEmbedder(name string, dimension int, construct func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{
		name:      name,
		dimension: dimension,
		construct: construct,
	}
}

func (l *LazyEmbedder) init() (Embedder, error) {
	l.once.Do(func() {
		l.backend, l.err = l.construct()
	})
	return l.backend, l.err
}

// Embed initializes the backend if needed and delegates to it.
func (l *LazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	backend, err := l.init()
	if err != nil {
		return nil, err
	}
	return backend.Embed(ctx, text)
}

// EmbedBatch initializes the backend if needed and delegates to it.
func (l *LazyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	backend, err := l.init()
	if err != nil {
		return nil, err
	}
	return backend.EmbedBatch(ctx, texts)
}

// Dimension returns the declared embedding dimension.
func (l *LazyEmbedder) Dimension() int {
	return l.dimension
}

// Name returns the declared provider name.
func (l *LazyEmbedder) Name() string {
	return l.name
}

// Verify LazyEmbedder implements Embedder.
var _ Embedder = (*LazyEmbedder)(nil)
