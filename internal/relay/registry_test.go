package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serpgrab/pkg/logger"
)

type fakeListener struct {
	id      string
	sendErr error

	mu       sync.Mutex
	received [][]byte
	closed   bool
}

func (f *fakeListener) ID() string { return f.id }

func (f *fakeListener) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeListener) Close(string) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func TestRegistryBroadcastDropsFailingListeners(t *testing.T) {
	m := NewMetrics()
	r := NewRegistry(m, logger.NewTestLogger())

	good1 := &fakeListener{id: "a"}
	good2 := &fakeListener{id: "b"}
	bad := &fakeListener{id: "c", sendErr: errors.New("broken pipe")}
	r.Add(good1)
	r.Add(good2)
	r.Add(bad)
	require.Equal(t, 3, r.Len())
	assert.Equal(t, float64(3), testutil.ToFloat64(m.listeners))

	sent := r.Broadcast(context.Background(), []byte(`{"lat":1,"lon":2}`))

	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, r.Len())
	assert.True(t, bad.closed)
	assert.False(t, good1.closed)
	assert.Equal(t, [][]byte{[]byte(`{"lat":1,"lon":2}`)}, good1.received)
	assert.Equal(t, [][]byte{[]byte(`{"lat":1,"lon":2}`)}, good2.received)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.deliveries))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deliveryFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.listeners))
}

func TestRegistryBroadcastWithoutListeners(t *testing.T) {
	r := NewRegistry(nil, logger.NewNopLogger())
	assert.Equal(t, 0, r.Broadcast(context.Background(), []byte("{}")))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(nil, logger.NewNopLogger())
	r.Add(&fakeListener{id: "a"})

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry(nil, logger.NewNopLogger())
	a := &fakeListener{id: "a"}
	b := &fakeListener{id: "b"}
	r.Add(a)
	r.Add(b)

	r.CloseAll("shutdown")

	assert.Equal(t, 0, r.Len())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
