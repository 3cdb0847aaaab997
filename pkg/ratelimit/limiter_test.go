package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHostLimiterPerKey(t *testing.T) {
	l := NewHostLimiter(2, time.Hour)

	if !l.Allow("a.example") || !l.Allow("a.example") {
		t.Error("Expected two requests to a.example to be allowed")
	}
	if l.Allow("a.example") {
		t.Error("Expected third request to a.example to be denied")
	}
	if !l.Allow("b.example") {
		t.Error("Expected b.example to have its own window")
	}
	if got := l.keys(); got != 2 {
		t.Errorf("Expected 2 keys, got %d", got)
	}
}

func TestHostLimiterWindowSlides(t *testing.T) {
	l := NewHostLimiter(1, 150*time.Millisecond)

	if !l.Allow("cdn") {
		t.Fatal("Expected first request to be allowed")
	}

	start := time.Now()
	if err := l.Wait(context.Background(), "cdn"); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("Expected Wait to block until the window slides")
	}
}

func TestHostLimiterSweepsIdleKeys(t *testing.T) {
	l := NewHostLimiter(1, 50*time.Millisecond)
	l.Allow("a")
	l.Allow("b")

	time.Sleep(80 * time.Millisecond)
	if got := l.keys(); got != 0 {
		t.Errorf("Expected idle keys to be swept, got %d", got)
	}
}

func TestHostLimiterSweepsOnNewKey(t *testing.T) {
	l := NewHostLimiter(1, 50*time.Millisecond)
	l.Allow("a")
	l.Allow("b")

	time.Sleep(80 * time.Millisecond)
	l.Allow("c")

	l.mu.Lock()
	n := len(l.windows)
	l.mu.Unlock()
	if n != 1 {
		t.Errorf("Expected only the new key to remain, got %d", n)
	}
}

func TestHostLimiterReset(t *testing.T) {
	l := NewHostLimiter(1, time.Hour)
	l.Allow("a")

	l.Reset()
	if !l.Allow("a") {
		t.Error("Expected request to be allowed after reset")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := NewHostLimiter(1, time.Hour)
	l.Allow("a")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "a")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestPerMinute(t *testing.T) {
	if _, ok := PerMinute(0).(Unlimited); !ok {
		t.Error("Expected 0 requests per minute to disable limiting")
	}

	l := PerMinute(2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Error("Expected two requests to be allowed")
	}
	if l.Allow("a") {
		t.Error("Expected third request within the minute to be denied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Unlimited{}).Wait(ctx, "a"); err == nil {
		t.Error("Expected Unlimited.Wait to report a cancelled context")
	}
}
