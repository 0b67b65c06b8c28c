// Package resilience guards outbound calls to SerpAPI and Salesforce with
// bounded retries and a circuit breaker.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff describes a capped exponential retry schedule.
type Backoff struct {
	Attempts int           // total tries including the first
	Initial  time.Duration // delay before the first retry
	Max      time.Duration
	Jitter   float64 // fraction of the delay randomized in both directions
}

// NewBackoff builds a Backoff from config values, falling back to defaults
// for anything non-positive.
func NewBackoff(attempts, initialMs, maxMs int, jitter float64) Backoff {
	b := Backoff{Attempts: 3, Initial: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.25}
	if attempts > 0 {
		b.Attempts = attempts
	}
	if initialMs > 0 {
		b.Initial = time.Duration(initialMs) * time.Millisecond
	}
	if maxMs > 0 {
		b.Max = time.Duration(maxMs) * time.Millisecond
	}
	if jitter >= 0 {
		b.Jitter = jitter
	}
	return b
}

// Delay returns the wait before retry n (0-based).
func (b Backoff) Delay(n int) time.Duration {
	d := b.Initial << n
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		span := float64(d) * b.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * span)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Retry calls fn until it succeeds, returns a non-transient error, the
// attempts run out, or ctx is done. The last error is returned as is.
func Retry[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	for n := 0; ; n++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if n == attempts-1 || ctx.Err() != nil || !IsTransient(err) {
			return zero, err
		}

		wait := b.Delay(n)
		zap.L().Warn("resilience: retrying",
			zap.String("op", op),
			zap.Int("attempt", n+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
}
