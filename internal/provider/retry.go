package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds an adapter's internal retry loop. The backoff interval
// doubles each attempt, starting at InitialInterval and capped at
// MaxInterval, with no jitter so the schedule stays a pure function of the
// attempt index. MaxAttempts of zero means a single attempt.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Retry runs op under the policy. A context cancellation or a
// backoff.Permanent error stops the loop immediately; anything else is
// retried until the attempt budget is spent.
func Retry[T any](ctx context.Context, policy RetryPolicy, op backoff.Operation[T]) (T, error) {
	tries := policy.MaxAttempts
	if tries == 0 {
		tries = 1
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     policy.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         policy.MaxInterval,
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}
