package traversal

import (
	"context"
	"time"
)

// ReadyFunc reports whether the page has settled
type ReadyFunc func(ctx context.Context) (bool, error)

// Waiter settles between interactions. Delay is always waited out. With
// Readiness enabled and a ReadyFunc supplied it then polls every
// PollInterval until ready or MaxWait, counted from the start, elapses.
type Waiter struct {
	Delay        time.Duration
	Readiness    bool
	MaxWait      time.Duration
	PollInterval time.Duration
}

// FixedWaiter returns a Waiter that always sleeps d
func FixedWaiter(d time.Duration) *Waiter {
	return &Waiter{Delay: d}
}

// Wait blocks until the page is ready, the bound elapses, or ctx is done.
// It returns true when readiness was observed (or the fixed delay fully
// elapsed) and false on timeout or cancellation. A nil Waiter does not wait.
func (w *Waiter) Wait(ctx context.Context, ready ReadyFunc) bool {
	if w == nil {
		return ctx.Err() == nil
	}
	if ready == nil || !w.Readiness || w.PollInterval <= 0 {
		return sleepCtx(ctx, w.Delay)
	}

	start := time.Now()
	floor := w.Delay
	if floor < w.PollInterval {
		floor = w.PollInterval
	}
	if !sleepCtx(ctx, floor) {
		return false
	}

	deadline := start.Add(w.MaxWait)
	for {
		// Predicate errors count as not ready
		if ok, err := ready(ctx); err == nil && ok {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		if !sleepCtx(ctx, w.PollInterval) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
