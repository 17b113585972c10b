package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var calls int
	err := Policy{MaxAttempts: 3}.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoSucceedsOnNthAttempt(t *testing.T) {
	var calls int
	targetErr := errors.New("transient error")

	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return targetErr
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExceedsMaxAttempts(t *testing.T) {
	targetErr := errors.New("persistent error")
	var calls int

	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), func() error {
		calls++
		return targetErr
	})
	if !errors.Is(err, targetErr) {
		t.Fatalf("expected target error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	go func() {
		for calls.Load() == 0 {
			time.Sleep(1 * time.Millisecond)
		}
		cancel()
	}()

	err := Policy{MaxAttempts: 5}.Do(ctx, func() error {
		calls.Add(1)
		return errors.New("keep trying")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() > 2 {
		t.Errorf("expected at most 2 calls, got %d", calls.Load())
	}
}

func TestDoContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := Policy{MaxAttempts: 3}.Do(ctx, func() error {
		calls++
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected 0 calls with cancelled context, got %d", calls)
	}
}

func TestZeroPolicyUsesDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	if p.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, p.MaxAttempts)
	}
	if p.BaseDelay != DefaultBaseDelay || p.MaxDelay != DefaultMaxDelay {
		t.Errorf("expected default delays, got %v/%v", p.BaseDelay, p.MaxDelay)
	}

	var calls int
	err := Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("expected %d calls (default), got %d", DefaultMaxAttempts, calls)
	}
}

func TestBackoffProgression(t *testing.T) {
	p := Policy{}.withDefaults()
	prev := time.Duration(0)
	for attempt := 0; attempt < 3; attempt++ {
		d := p.backoff(attempt)
		if d <= prev && attempt > 0 {
			t.Errorf("attempt %d: backoff %v should be > previous %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoffHonorsConfiguredDelays(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}.withDefaults()

	if d := p.backoff(0); d < 100*time.Millisecond || d > 125*time.Millisecond {
		t.Errorf("first backoff %v outside base delay with jitter", d)
	}
	maxWithJitter := p.MaxDelay + time.Duration(float64(p.MaxDelay)*jitterFraction)
	if d := p.backoff(5); d < p.MaxDelay || d > maxWithJitter {
		t.Errorf("capped backoff %v outside [%v, %v]", d, p.MaxDelay, maxWithJitter)
	}
}

func TestBackoffCapped(t *testing.T) {
	p := Policy{}.withDefaults()
	d := p.backoff(100)
	maxWithJitter := p.MaxDelay + time.Duration(float64(p.MaxDelay)*jitterFraction)
	if d > maxWithJitter {
		t.Errorf("backoff %v exceeds max with jitter %v", d, maxWithJitter)
	}
	if d < p.MaxDelay {
		t.Errorf("backoff %v below max delay %v for large attempt", d, p.MaxDelay)
	}
}
