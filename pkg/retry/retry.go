// Package retry provides the single bounded-retry policy shared by the
// deposit-confirmation and order-status polling paths.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
// The caller decides whether exhaustion is a failure or a timeout needing a
// final direct lookup.
var ErrExhausted = errors.New("retry attempts exhausted")

// BackoffFunc returns the delay before attempt n (0-based, consulted after
// attempt n fails).
type BackoffFunc func(attempt int) time.Duration

// Fixed returns the same delay for every attempt.
func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Linear grows the delay by step per attempt, starting at base.
func Linear(base, step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base + time.Duration(attempt)*step
	}
}

// Policy bounds a retried operation: attempt count, inter-attempt backoff,
// and a predicate deciding which errors are worth another try.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Retryable   func(error) bool
}

// Do runs fn up to MaxAttempts times. A nil error stops immediately. A
// non-retryable error is returned as-is. Exhaustion returns ErrExhausted
// wrapping the last attempt's error. Context cancellation is honored between
// attempts and returned untouched.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = Fixed(0)
	}

	var last error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !retryable(last) {
			return last
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := backoff(attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return errors.Join(ErrExhausted, last)
}

// IsExhausted reports whether err came from a fully exhausted policy.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}
