// Package retry wraps remote reads with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"botpulse/internal/config"
)

// Policy bounds how often and how patiently a call is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry, if set, is called before each wait with the attempt that
	// just failed (1-based).
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy is three attempts starting at one second.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// FromConfig builds a Policy from the retry config section.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay.Duration}
}

// Delay returns the wait after the given failed attempt: BaseDelay doubled
// for every attempt past the first.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Do invokes fn until it succeeds or MaxAttempts calls have failed, in which
// case the last error is returned wrapped with the attempt count. Every error
// is retried the same way. Cancelling ctx stops the wait, not fn itself.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		wait := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		slog.Debug("retrying remote call", "attempt", attempt, "wait", wait, "error", err)
		if err := sleepWithContext(ctx, wait); err != nil {
			return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, lastErr)
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
