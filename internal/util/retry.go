package util

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Backoff spaces retries exponentially from Base up to Max, with up to
// Base of random jitter added. The zero value retries immediately.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	d := b.Base << min(attempt, 16)
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d + time.Duration(rand.Int64N(int64(b.Base)+1))
}

// RetryWithContext calls fn up to maxTries times until it returns a nil
// error or ctx is done. Context errors returned by fn are not retried.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	return RetryWithBackoff(ctx, maxTries, Backoff{}, fn)
}

// RetryWithBackoff is RetryWithContext with a pause between attempts.
func RetryWithBackoff[T any](ctx context.Context, maxTries int, backoff Backoff, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if i == maxTries-1 {
			break
		}
		if d := backoff.delay(i); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		}
	}
	return zero, lastErr
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, maxTries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
