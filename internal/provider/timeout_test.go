package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// deadlineCapturingGenerator records the deadline of the context it was
// called with.
type deadlineCapturingGenerator struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineCapturingGenerator) Generate(ctx context.Context, _ string, _ GenerateOptions) (string, error) {
	d.deadline, d.ok = ctx.Deadline()
	return "ok", nil
}

// blockingGenerator never returns until its context expires.
type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ string, _ GenerateOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGeneratorWithTimeout_BoundsEveryCall(t *testing.T) {
	inner := &deadlineCapturingGenerator{}
	g := GeneratorWithTimeout(inner, 5*time.Second)

	start := time.Now()
	if _, err := g.Generate(context.Background(), "prompt", GenerateOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !inner.ok {
		t.Fatal("expected a deadline on the generation context")
	}
	remaining := inner.deadline.Sub(start)
	if remaining < 4*time.Second || remaining > 6*time.Second {
		t.Errorf("expected ~5s deadline, got %v", remaining)
	}
}

func TestGeneratorWithTimeout_DefaultWhenZero(t *testing.T) {
	inner := &deadlineCapturingGenerator{}
	g := GeneratorWithTimeout(inner, 0)

	start := time.Now()
	if _, err := g.Generate(context.Background(), "prompt", GenerateOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !inner.ok {
		t.Fatal("expected a deadline on the generation context")
	}
	remaining := inner.deadline.Sub(start)
	if remaining < defaultGenerateTimeout-time.Second || remaining > defaultGenerateTimeout+time.Second {
		t.Errorf("expected default %v deadline, got %v", defaultGenerateTimeout, remaining)
	}
}

func TestGeneratorWithTimeout_KeepsEarlierCallerDeadline(t *testing.T) {
	inner := &deadlineCapturingGenerator{}
	g := GeneratorWithTimeout(inner, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if _, err := g.Generate(ctx, "prompt", GenerateOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if remaining := inner.deadline.Sub(start); remaining > 2*time.Second {
		t.Errorf("caller's 1s deadline should win, got %v", remaining)
	}
}

func TestGeneratorWithTimeout_CancelsSlowGeneration(t *testing.T) {
	g := GeneratorWithTimeout(blockingGenerator{}, 10*time.Millisecond)

	_, err := g.Generate(context.Background(), "prompt", GenerateOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewGenerator_RemoteProvidersAreTimeoutBound(t *testing.T) {
	for _, cfg := range []Config{
		{Type: "anthropic", APIKey: "k"},
		{Type: "openai", APIKey: "k"},
	} {
		g, err := NewGenerator(cfg, 5*time.Second)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", cfg.Type, err)
		}
		tg, ok := g.(*timeoutGenerator)
		if !ok {
			t.Fatalf("%s: expected a timeout-bound generator, got %T", cfg.Type, g)
		}
		if tg.timeout != 5*time.Second {
			t.Errorf("%s: expected 5s timeout, got %v", cfg.Type, tg.timeout)
		}
	}
}

func TestEffectiveGeneratorModel(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Type: "ollama"}, defaultOllamaModel},
		{Config{Type: "anthropic"}, defaultAnthropicModel},
		{Config{Type: "openai"}, defaultOpenAIModel},
		{Config{Type: "anthropic", Model: "claude-opus-4-1"}, "claude-opus-4-1"},
	}
	for _, tc := range cases {
		if got := EffectiveGeneratorModel(tc.cfg); got != tc.want {
			t.Errorf("EffectiveGeneratorModel(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}
