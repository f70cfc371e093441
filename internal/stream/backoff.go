package stream

import (
	"context"
	"math/rand"
	"time"
)

// backoff tracks the reconnect delay across successive failed Subscribe
// attempts: initial 1s, doubling, capped at 30s, ±20% jitter applied to
// every wait (spec.md §4.5). avast/retry-go's Execute models a bounded
// number of attempts at one operation and returns once they're exhausted —
// it has no notion of "keep retrying forever, but let the caller observe
// every attempt to track a separate auth-failure window," so the reconnect
// loop owns its own backoff state instead of wrapping retry.Retry.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

func (b *backoff) reset() {
	b.current = b.initial
}

// wait blocks for the current delay (jittered ±20%) or until ctx is done,
// then doubles the delay for next time, capped at max. Returns false if ctx
// was canceled before the wait completed.
func (b *backoff) wait(ctx context.Context) bool {
	jitter := 1 + (rand.Float64()*0.4 - 0.2) // [0.8, 1.2)
	delay := time.Duration(float64(b.current) * jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
