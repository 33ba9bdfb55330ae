package ratelimit

import (
	"context"
	"time"
)

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the delay before retry attempt (zero-based).
// Throttled responses back off exponentially (2^attempt seconds); other
// failures wait attempt+1 seconds. Unit scales both for tests.
func Backoff(attempt int, throttled bool, unit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if unit <= 0 {
		unit = time.Second
	}
	if throttled {
		return unit * time.Duration(1<<min(attempt, 6))
	}
	return unit * time.Duration(attempt+1)
}
