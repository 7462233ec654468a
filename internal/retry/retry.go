// Package retry provides a bounded retry helper with a fixed delay schedule
// and a caller-supplied retryability predicate.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule. The number of attempts is
// len(Delays) + 1: the operation runs once, then once more after each delay.
type Policy[T any] struct {
	Delays []time.Duration
	// Retryable decides from the last result and error whether another
	// attempt is worthwhile. A nil predicate retries on any error.
	Retryable func(T, error) bool
}

// Do runs fn under the policy. It returns the last result and error once the
// operation succeeds, the predicate declines, attempts are exhausted, or the
// context is cancelled.
func Do[T any](ctx context.Context, p Policy[T], fn func(context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(_ T, err error) bool { return err != nil }
	}

	result, err := fn(ctx)
	for _, delay := range p.Delays {
		if !retryable(result, err) {
			return result, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
		result, err = fn(ctx)
	}
	return result, err
}
