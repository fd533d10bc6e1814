// Package retry provides a generic exponential-backoff executor used to
// wrap agent invocations and other fallible operations throughout the
// pipeline.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/budget"
)

const (
	baseDelay = 1 * time.Second
	capDelay  = 30 * time.Second
)

// Options configures a single Execute call.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Description is used only for error wrapping/logging.
	Description string
}

// Result is the outcome of Execute.
type Result[T any] struct {
	Success bool
	Value   T
	Err     error
	Attempts int
}

// Fn is the operation retried by Execute. attempt is 1-indexed.
type Fn[T any] func(ctx context.Context, attempt int) (T, error)

// Execute runs fn up to opts.MaxAttempts times with full-jitter exponential
// backoff between attempts (base 1s, cap 30s). Any error triggers a retry
// except *budget.BudgetExceededError, which propagates on the first
// occurrence since further attempts cannot help. Execute also returns early
// if ctx is cancelled while waiting between attempts.
func Execute[T any](ctx context.Context, opts Options, fn Fn[T]) Result[T] {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var zero T

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := fn(ctx, attempt)
		if err == nil {
			return Result[T]{Success: true, Value: value, Attempts: attempt}
		}
		lastErr = err

		var budgetErr *budget.BudgetExceededError
		if errors.As(err, &budgetErr) {
			return Result[T]{Success: false, Value: zero, Err: err, Attempts: attempt}
		}

		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt)
		var rlErr *RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
			delay = rlErr.RetryAfter
		}
		select {
		case <-ctx.Done():
			return Result[T]{Success: false, Value: zero, Err: ctx.Err(), Attempts: attempt}
		case <-time.After(delay):
		}
	}

	return Result[T]{Success: false, Value: zero, Err: lastErr, Attempts: maxAttempts}
}

// backoffDelay returns the full-jitter delay before the (attempt+1)th try:
// a uniformly random duration in [0, min(base*2^(attempt-1), cap)].
func backoffDelay(attempt int) time.Duration {
	exp := baseDelay << uint(attempt-1) //nolint:gosec
	if exp <= 0 || exp > capDelay {
		exp = capDelay
	}
	return time.Duration(rand.Int63n(int64(exp) + 1))
}
