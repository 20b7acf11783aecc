package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 5, Backoff: Fixed(0)}

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoNonRetryableReturnsImmediately(t *testing.T) {
	hard := errors.New("hard failure")
	calls := 0
	policy := Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, hard) },
	}

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return hard
	})
	if !errors.Is(err, hard) {
		t.Fatalf("expected the hard error, got %v", err)
	}
	if IsExhausted(err) {
		t.Error("a non-retryable error must not classify as exhaustion")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestDoExhaustion(t *testing.T) {
	soft := errors.New("still pending")
	calls := 0
	policy := Policy{MaxAttempts: 4, Backoff: Fixed(time.Millisecond)}

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return soft
	})
	if !IsExhausted(err) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if !errors.Is(err, soft) {
		t.Error("exhaustion should wrap the last attempt's error")
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{MaxAttempts: 100, Backoff: Fixed(10 * time.Millisecond)}

	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("pending")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls > 3 {
		t.Errorf("cancellation should stop further attempts, got %d", calls)
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := Linear(10*time.Millisecond, 5*time.Millisecond)
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 15 * time.Millisecond},
		{4, 30 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := backoff(tc.attempt); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}
