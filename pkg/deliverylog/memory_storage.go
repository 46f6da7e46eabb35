package deliverylog

import (
	"context"
	"sync"
)

// MemoryStorage keeps entries in process.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Append(_ context.Context, entries ...Entry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.entries = append(s.entries, entries...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !c.Match(e) {
			continue
		}
		if skipped < c.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
