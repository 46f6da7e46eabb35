package notifications

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps messages in process. Suitable for development,
// tests and single-instance deployments without a database.
type MemoryStorage struct {
	mu       sync.RWMutex
	messages []Message                       // insertion order
	index    map[string]int                  // id -> position in messages
	reads    map[string]map[string]time.Time // message id -> user id -> read at
	now      func() time.Time
}

// MemoryOption configures MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithMemoryClock sets the time source for read timestamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		index: make(map[string]int),
		reads: make(map[string]map[string]time.Time),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) Create(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[msg.ID]; ok {
		return fmt.Errorf("%w: duplicate id %q", ErrInvalidMessage, msg.ID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.Recipients = slices.Clone(msg.Recipients)
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, userID, messageID string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[messageID]
	if !ok || !s.messages[i].AddressedTo(userID) {
		return nil, ErrNotFound
	}
	item := s.itemLocked(s.messages[i], userID)
	return &item, nil
}

func (s *MemoryStorage) List(_ context.Context, userID string, opts ListOptions) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Item
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if !m.AddressedTo(userID) {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, m.Type) {
			continue
		}
		if opts.Since != nil && m.CreatedAt.Before(*opts.Since) {
			continue
		}
		item := s.itemLocked(m, userID)
		if opts.OnlyUnread && item.Read {
			continue
		}
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b Item) int { return b.CreatedAt.Compare(a.CreatedAt) })

	offset := max(opts.Offset, 0)
	if offset >= len(out) {
		return []Item{}, nil
	}
	out = out[offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.messages {
		if !m.AddressedTo(userID) {
			continue
		}
		if _, read := s.reads[m.ID][userID]; !read {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[messageID]
	if !ok || !s.messages[i].AddressedTo(userID) {
		return ErrNotFound
	}
	s.markLocked(messageID, userID, s.now())
	return nil
}

func (s *MemoryStorage) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	n := 0
	for _, m := range s.messages {
		if m.AddressedTo(userID) && s.markLocked(m.ID, userID, at) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) Delete(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[messageID]
	if !ok {
		return ErrNotFound
	}
	s.messages = slices.Delete(s.messages, i, i+1)
	delete(s.index, messageID)
	delete(s.reads, messageID)
	for j := i; j < len(s.messages); j++ {
		s.index[s.messages[j].ID] = j
	}
	return nil
}

// markLocked records the first read only. Must be called with the write lock held.
func (s *MemoryStorage) markLocked(messageID, userID string, at time.Time) bool {
	users, ok := s.reads[messageID]
	if !ok {
		users = make(map[string]time.Time)
		s.reads[messageID] = users
	}
	if _, done := users[userID]; done {
		return false
	}
	users[userID] = at
	return true
}

func (s *MemoryStorage) itemLocked(m Message, userID string) Item {
	m.Recipients = slices.Clone(m.Recipients)
	item := Item{Message: m}
	if at, ok := s.reads[m.ID][userID]; ok {
		item.Read = true
		item.ReadAt = &at
	}
	return item
}
