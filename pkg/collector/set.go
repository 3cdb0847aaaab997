// Package collector accumulates unique string results across traversal cycles.
package collector

import "sync"

// Set is an insertion-ordered set of non-empty strings. It only grows.
// Safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	order []string
}

// New returns an empty Set
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add merges results into the set and returns how many were new.
// Empty strings and nil input are ignored.
func (s *Set) Add(results []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, r := range results {
		if r == "" {
			continue
		}
		if _, ok := s.seen[r]; ok {
			continue
		}
		s.seen[r] = struct{}{}
		s.order = append(s.order, r)
		added++
	}
	return added
}

// Snapshot returns a copy of the current contents in first-seen order
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of unique items
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Contains reports whether item has been added
func (s *Set) Contains(item string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[item]
	return ok
}
