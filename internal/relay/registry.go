package relay

import (
	"context"
	"sync"

	"serpgrab/pkg/logger"
)

// Registry tracks connected listeners and fans payloads out to them
type Registry struct {
	mu        sync.RWMutex
	listeners map[string]Listener
	metrics   *Metrics
	logger    logger.Logger
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *Metrics, log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Registry{
		listeners: make(map[string]Listener),
		metrics:   metrics,
		logger:    log.WithField("component", "registry"),
	}
}

// Add registers l
func (r *Registry) Add(l Listener) {
	r.mu.Lock()
	r.listeners[l.ID()] = l
	n := len(r.listeners)
	r.mu.Unlock()

	r.metrics.setListeners(n)
	r.logger.WithField("listener", l.ID()).DebugWithFields("Listener connected", map[string]interface{}{"listeners": n})
}

// Remove unregisters the listener with id. It reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.listeners[id]
	delete(r.listeners, id)
	n := len(r.listeners)
	r.mu.Unlock()

	if ok {
		r.metrics.setListeners(n)
		r.logger.WithField("listener", id).DebugWithFields("Listener disconnected", map[string]interface{}{"listeners": n})
	}
	return ok
}

// Len returns the number of connected listeners
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Broadcast sends payload to every listener and returns how many received
// it. Listeners that fail a send are removed and closed.
func (r *Registry) Broadcast(ctx context.Context, payload []byte) int {
	r.mu.RLock()
	targets := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		targets = append(targets, l)
	}
	r.mu.RUnlock()

	sent := 0
	for _, l := range targets {
		if err := l.Send(ctx, payload); err != nil {
			r.logger.WithError(err).WithField("listener", l.ID()).Warn("Dropping listener after failed send")
			r.metrics.deliveryFailed()
			if r.Remove(l.ID()) {
				l.Close("send failed")
			}
			continue
		}
		sent++
	}
	r.metrics.delivered(sent)
	return sent
}

// CloseAll disconnects every listener
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	targets := r.listeners
	r.listeners = make(map[string]Listener)
	r.mu.Unlock()

	for _, l := range targets {
		l.Close(reason)
	}
	r.metrics.setListeners(0)
}
