// Package retry implements bounded retry schedules with exponential backoff
// and jitter, used for webhook delivery.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts before giving up.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the backoff delay.
	DefaultMaxDelay = 10 * time.Second

	// jitterFraction is the maximum fraction of the delay added as jitter.
	jitterFraction = 0.25

	// maxBackoffShift bounds the doubling so the delay computation cannot
	// overflow for large attempt numbers.
	maxBackoffShift = 16
)

// Policy describes a retry schedule. The zero value uses the package defaults,
// so callers only set the fields their configuration overrides.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay after the first failed attempt; it doubles on
	// each subsequent failure.
	BaseDelay time.Duration

	// MaxDelay caps the doubled delay.
	MaxDelay time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. It returns the last error when all attempts fail.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// No sleep after the last attempt.
		if attempt == p.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	return lastErr
}

// backoff returns the delay before the next attempt (0-indexed), doubling from
// BaseDelay, capped at MaxDelay, with up to jitterFraction added on top.
func (p Policy) backoff(attempt int) time.Duration {
	shift := attempt
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delay := p.BaseDelay << shift
	if delay > p.MaxDelay || delay < p.BaseDelay {
		delay = p.MaxDelay
	}

	jitter := time.Duration(float64(delay) * jitterFraction * rand.Float64())
	return delay + jitter
}
