package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window allows at most Limit events within any trailing Period.
type Window struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
}

// NewWindow creates a limiter. A non-positive limit or period disables limiting.
func NewWindow(limit int, period time.Duration) *Window {
	return &Window{limit: limit, period: period, now: time.Now}
}

// Limit returns the configured event budget.
func (w *Window) Limit() int { return w.limit }

// Period returns the configured window length.
func (w *Window) Period() time.Duration { return w.period }

// Wait blocks until an event can be recorded without exceeding the limit,
// then records it. It returns the context error if ctx ends first.
func (w *Window) Wait(ctx context.Context) error {
	if w == nil || w.limit <= 0 || w.period <= 0 {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := w.reserve()
		if delay <= 0 {
			return nil
		}
		if err := SleepWithContext(ctx, delay); err != nil {
			return err
		}
	}
}

// reserve records an event and returns zero when capacity exists; otherwise
// it returns how long until the oldest event leaves the window.
func (w *Window) reserve() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)
	if len(w.events) < w.limit {
		w.events = append(w.events, now)
		return 0
	}
	delay := w.events[0].Add(w.period).Sub(now)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.period)
	drop := 0
	for drop < len(w.events) && !w.events[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.events = append(w.events[:0], w.events[drop:]...)
	}
}

// InFlight reports how many events are currently inside the window.
func (w *Window) InFlight() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.events)
}
