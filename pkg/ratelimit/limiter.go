package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outbound requests per key. The materializer keys by image
// host, so a slow batch against one CDN does not hold back the others.
type Limiter interface {
	// Allow reports whether a request for key may proceed now, consuming a
	// slot if so
	Allow(key string) bool
	// Wait blocks until a request for key may proceed or ctx is done
	Wait(ctx context.Context, key string) error
	// Reset forgets all recorded requests
	Reset()
}

// PerMinute returns a limiter admitting n requests per minute for each key.
// n <= 0 disables limiting.
func PerMinute(n int) Limiter {
	if n <= 0 {
		return Unlimited{}
	}
	return NewHostLimiter(n, time.Minute)
}

// Unlimited admits every request immediately
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }

func (Unlimited) Wait(ctx context.Context, _ string) error { return ctx.Err() }

func (Unlimited) Reset() {}

// HostLimiter keeps one sliding window per key and admits at most max
// requests for a key within any trailing span
type HostLimiter struct {
	max     int
	span    time.Duration
	windows map[string][]time.Time
	mu      sync.Mutex
}

// NewHostLimiter creates a limiter admitting max requests per key per span
func NewHostLimiter(max int, span time.Duration) *HostLimiter {
	return &HostLimiter{
		max:     max,
		span:    span,
		windows: make(map[string][]time.Time),
	}
}

// Allow records a request for key if its window has room
func (l *HostLimiter) Allow(key string) bool {
	_, ok := l.reserve(key)
	return ok
}

// Wait blocks until the oldest request for key leaves its window
func (l *HostLimiter) Wait(ctx context.Context, key string) error {
	for {
		delay, ok := l.reserve(key)
		if ok {
			return nil
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Reset drops every window
func (l *HostLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows = make(map[string][]time.Time)
}

// keys returns how many keys currently hold a window
func (l *HostLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(time.Now())
	return len(l.windows)
}

// reserve takes a slot for key, or reports how long until one frees up
func (l *HostLimiter) reserve(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	requests, seen := l.windows[key]
	if !seen {
		// Idle windows are dropped whenever a new key arrives
		l.sweep(now)
	}
	requests = prune(requests, now.Add(-l.span))

	if len(requests) < l.max {
		l.windows[key] = append(requests, now)
		return 0, true
	}
	l.windows[key] = requests
	return l.span - now.Sub(requests[0]), false
}

// sweep removes windows with no request left inside the span
func (l *HostLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.span)
	for key, requests := range l.windows {
		if requests = prune(requests, cutoff); len(requests) == 0 {
			delete(l.windows, key)
		} else {
			l.windows[key] = requests
		}
	}
}

// prune drops timestamps before cutoff. requests is ordered oldest first.
func prune(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && requests[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return requests
	}
	n := copy(requests, requests[i:])
	return requests[:n]
}

// sleep waits for d (at least a short floor to avoid spinning) or ctx
func sleep(ctx context.Context, d time.Duration) error {
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
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
