package resilience

import (
	"context"
)

// Guard combines a Backoff and an optional Breaker for one remote service.
type Guard struct {
	Backoff Backoff
	Breaker *Breaker
}

// Call runs fn under g. Each attempt passes through the breaker; an open
// breaker fails the call immediately without consuming retries.
func Call[T any](ctx context.Context, g Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return Retry(ctx, g.Backoff, op, func(ctx context.Context) (T, error) {
		if g.Breaker == nil {
			return fn(ctx)
		}
		if err := g.Breaker.allow(); err != nil {
			var zero T
			return zero, err
		}
		v, err := fn(ctx)
		g.Breaker.record(err)
		return v, err
	})
}
