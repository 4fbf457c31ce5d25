// Package retry models sequential fallback over a fixed list of attempts
// with a linear backoff schedule. Both the geocoding and venue fetch paths
// consume the same policy so mirror behaviour stays consistent.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrNoAttempts is returned when a policy allows zero attempts.
var ErrNoAttempts = errors.New("retry: no attempts configured")

// Policy describes how many attempts to make and how long to wait between
// failures. Delays grow linearly: BaseDelay before the second attempt,
// BaseDelay+DelayStep before the third, and so on.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	DelayStep   time.Duration
}

// Delay returns the wait before the given attempt. Attempt 0 runs
// immediately.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return p.BaseDelay + time.Duration(attempt-1)*p.DelayStep
}

// Do runs fn up to p.MaxAttempts times, sleeping the scheduled delay between
// failures. The first successful result is returned; once attempts are
// exhausted the last error is surfaced. Waiting respects ctx cancellation.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		return zero, ErrNoAttempts
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
