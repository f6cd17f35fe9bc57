// Package memory implements the fixed-window counter store as an in-process
// map. Single-instance deployments use it directly; clustered deployments use
// the redis store instead.
package memory

import (
	"context"
	"sync"
	"time"
)

// window is one fixed counting window for a key.
type window struct {
	hits    int64
	resetAt time.Time
}

func (w *window) expired(now time.Time) bool {
	return !now.Before(w.resetAt)
}

// InMemoryCounterStore tracks fixed-window counters keyed by derived rate
// limit keys. Expired windows are replaced lazily on access and reaped by
// Sweep.
type InMemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is swappable for tests.
	now func() time.Time
}

func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *InMemoryCounterStore) WithClock(now func() time.Time) *InMemoryCounterStore {
	s.now = now
	return s
}

// Increment bumps the counter for key, opening a fresh window when none is
// live. The counter keeps growing past any limit; enforcing the limit is the
// service's job.
func (s *InMemoryCounterStore) Increment(_ context.Context, key string, windowSize time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || w.expired(now) {
		w = &window{hits: 0, resetAt: now.Add(windowSize)}
		s.windows[key] = w
	}
	w.hits++
	return w.hits, w.resetAt, nil
}

// Peek reads the live counter for key without mutating anything. An expired
// window reads as absent but is left for Sweep to reclaim.
func (s *InMemoryCounterStore) Peek(_ context.Context, key string) (int64, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || w.expired(s.now()) {
		return 0, time.Time{}, false, nil
	}
	return w.hits, w.resetAt, true, nil
}

// Reset drops the counter for key unconditionally.
func (s *InMemoryCounterStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Sweep reclaims every expired window and reports how many it removed.
func (s *InMemoryCounterStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if w.expired(now) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked windows, expired or not.
func (s *InMemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
