// Package memory provides in-memory audit stores for tests and demo mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kopguard/internal/audit"
)

// InMemoryStore keeps audit entries in a slice guarded by a mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByMember(_ context.Context, memberID string, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if e.MemberID == memberID {
			out = append(out, e)
		}
	}
	return newestFirst(out, limit), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]audit.Entry{}, s.entries...)
	return newestFirst(out, limit), nil
}

func (s *InMemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

// Clear empties the store. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// newestFirst sorts entries descending by timestamp and truncates to limit,
// matching the postgres store's ORDER BY created_at DESC.
func newestFirst(entries []audit.Entry, limit int) []audit.Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[j].Timestamp.Before(entries[i].Timestamp)
	})
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// InMemoryAlertStore keeps security alerts in memory.
type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts []audit.Alert
}

func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{}
}

func (s *InMemoryAlertStore) AppendAlert(_ context.Context, alert audit.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *InMemoryAlertStore) ListAlerts(_ context.Context, limit int) ([]audit.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]audit.Alert{}, s.alerts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].CreatedAt.Before(out[i].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
