package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for provider operations.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrTimeout         = errors.New("request timed out")
	ErrInvalidResponse = errors.New("invalid response from provider")
)

// Embedder generates vector embeddings from text. Implementations must be
// deterministic: embedding the same text twice yields the same vector, and
// EmbedBatch is elementwise equal to calling Embed on each text.
type Embedder interface {
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns vector embeddings for multiple texts in a single call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of every vector this embedder produces.
	Dimension() int

	// Name identifies the provider (e.g. "openai", "ollama").
	Name() string
}

// EmbedBatchSequential implements batch embedding by calling Embed sequentially.
// Use this as a fallback for providers that don't support native batch embedding.
func EmbedBatchSequential(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts list cannot be empty", ErrInvalidInput)
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		emb, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// GenerateOptions controls a single generation call.
type GenerateOptions struct {
	// Context holds retrieved knowledge (e.g. resolved similar bugs) injected
	// ahead of the prompt as numbered blocks.
	Context []string

	// Temperature in [0, 1]; 0 is deterministic.
	Temperature float32

	// MaxTokens bounds the response length. Must be positive; implementations
	// fall back to a provider default when zero.
	MaxTokens int
}

// Generator produces text from a prompt, optionally grounded on context.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// BuildContextPrompt combines a prompt with retrieved context blocks. The
// numbered block layout is part of the generation contract: it determines what
// the model sees first, so every generator must render context this way.
func BuildContextPrompt(prompt string, context []string) string {
	if len(context) == 0 {
		return prompt
	}

	blocks := make([]string, len(context))
	for i, c := range context {
		blocks[i] = fmt.Sprintf("Context %d:\n%s", i+1, c)
	}
	contextText := strings.Join(blocks, "\n\n")

	return fmt.Sprintf(`You are a helpful assistant analyzing bug reports.

%s

User Question: %s

Answer:`, contextText, prompt)
}
