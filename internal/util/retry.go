package util

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryErr calls fn up to maxTries times until it returns nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func RetryErr(maxTries int, fn func() error) error {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	for i := 0; i < maxTries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// RetryErrWithContext calls fn up to maxTries times until it returns nil error,
// or until ctx is done. Context cancellation and deadline errors are returned
// immediately without further attempts.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	if maxTries <= 0 {
		maxTries = 1
	}

	var lastErr error
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// RetryWithContext calls fn up to maxTries times until it returns a result and
// nil error, or until ctx is done. If maxTries <= 0, it defaults to 1.
// Returns ctx.Err() if the context is canceled, otherwise returns the last error.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
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
	}
	return zero, lastErr
}

// BackoffOptions controls the delay schedule used by RetryWithBackoff.
type BackoffOptions struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// RetryWithBackoff calls fn up to maxTries times, sleeping between attempts
// with exponential backoff plus jitter. A ShouldRetry predicate may be supplied
// to stop early on non-retryable errors; when nil, every error is retried.
func RetryWithBackoff(
	ctx context.Context,
	maxTries int,
	opts BackoffOptions,
	shouldRetry func(error) bool,
	fn func(context.Context) error,
) error {
	if maxTries <= 0 {
		maxTries = 1
	}
	if opts.Base <= 0 {
		opts.Base = 500 * time.Millisecond
	}
	if opts.Max <= 0 {
		opts.Max = 30 * time.Second
	}

	var lastErr error
	delay := opts.Base
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		// A per-attempt deadline is a retryable failure; only the parent
		// context going away stops the loop.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err

		if i == maxTries-1 {
			break
		}
		if err := sleepWithJitter(ctx, delay, opts.Jitter); err != nil {
			return err
		}
		delay *= 2
		if delay > opts.Max {
			delay = opts.Max
		}
	}
	return lastErr
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
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
