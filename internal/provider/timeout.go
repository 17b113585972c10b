package provider

import (
	"context"
	"time"
)

// defaultGenerateTimeout bounds generation calls when no timeout is configured.
const defaultGenerateTimeout = 120 * time.Second

// timeoutGenerator derives a deadline-bound context for every generation call,
// so a hung upstream cannot block a request indefinitely. An earlier deadline
// on the caller's context still wins.
type timeoutGenerator struct {
	inner   Generator
	timeout time.Duration
}

// GeneratorWithTimeout wraps g so that every Generate call runs under a
// context deadline. A non-positive timeout falls back to the default.
func GeneratorWithTimeout(g Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	return &timeoutGenerator{inner: g, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, prompt, opts)
}
