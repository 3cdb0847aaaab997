package traversal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaiterFixedDelay(t *testing.T) {
	w := FixedWaiter(30 * time.Millisecond)

	start := time.Now()
	ok := w.Wait(context.Background(), nil)

	assert.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaiterReadinessDisabledIgnoresPredicate(t *testing.T) {
	w := &Waiter{Delay: time.Millisecond, Readiness: false, MaxWait: time.Second, PollInterval: time.Millisecond}

	called := false
	w.Wait(context.Background(), func(context.Context) (bool, error) {
		called = true
		return true, nil
	})

	assert.False(t, called)
}

func TestWaiterPollsUntilReady(t *testing.T) {
	w := &Waiter{Delay: 20 * time.Millisecond, Readiness: true, MaxWait: time.Second, PollInterval: 5 * time.Millisecond}

	calls := 0
	start := time.Now()
	ok := w.Wait(context.Background(), func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			return false, errors.New("evaluation failed")
		}
		return calls >= 3, nil
	})

	assert.True(t, ok)
	assert.Equal(t, 3, calls)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaiterReadyPageStillWaitsDelay(t *testing.T) {
	w := &Waiter{Delay: 60 * time.Millisecond, Readiness: true, MaxWait: time.Second, PollInterval: 5 * time.Millisecond}

	calls := 0
	start := time.Now()
	ok := w.Wait(context.Background(), func(context.Context) (bool, error) {
		calls++
		return true, nil
	})

	assert.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestWaiterChecksOnceWhenDelayExceedsMaxWait(t *testing.T) {
	w := &Waiter{Delay: 30 * time.Millisecond, Readiness: true, MaxWait: 10 * time.Millisecond, PollInterval: 5 * time.Millisecond}

	calls := 0
	ok := w.Wait(context.Background(), func(context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestWaiterTimesOut(t *testing.T) {
	w := &Waiter{Readiness: true, MaxWait: 40 * time.Millisecond, PollInterval: 10 * time.Millisecond}

	start := time.Now()
	ok := w.Wait(context.Background(), func(context.Context) (bool, error) { return false, nil })

	assert.False(t, ok)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestWaiterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, FixedWaiter(time.Hour).Wait(ctx, nil))

	w := &Waiter{Readiness: true, MaxWait: time.Hour, PollInterval: time.Hour}
	assert.False(t, w.Wait(ctx, func(context.Context) (bool, error) { return true, nil }))
}

func TestNilWaiter(t *testing.T) {
	var w *Waiter
	assert.True(t, w.Wait(context.Background(), nil))
}
