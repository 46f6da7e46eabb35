package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type bucketState struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// MemoryStore keeps buckets in a map. Buckets idle longer than the stale
// threshold are dropped on the next sweep.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time

	staleAfter time.Duration
	lastSweep  time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithStaleAfter(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.staleAfter = d }
}

func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		buckets:    make(map[string]*bucketState),
		now:        time.Now,
		staleAfter: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

func (s *MemoryStore) ConsumeTokens(_ context.Context, key string, n int, cfg Config) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucketState{tokens: cfg.Capacity, lastRefill: now}
		s.buckets[key] = b
	}
	b.lastAccess = now

	if intervals := int(now.Sub(b.lastRefill) / cfg.RefillInterval); intervals > 0 {
		// Cap before multiplying so a long idle bucket cannot overflow.
		intervals = min(intervals, cfg.Capacity/cfg.RefillRate+1)
		b.tokens = min(b.tokens+intervals*cfg.RefillRate, cfg.Capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
		if b.tokens == cfg.Capacity {
			b.lastRefill = now
		}
	}

	remaining := b.tokens - n
	if remaining >= 0 {
		b.tokens = remaining
	}
	return remaining, b.lastRefill.Add(cfg.RefillInterval), nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Len reports the number of tracked buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *MemoryStore) sweep(now time.Time) {
	if s.staleAfter <= 0 || now.Sub(s.lastSweep) < s.staleAfter {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if now.Sub(b.lastAccess) > s.staleAfter {
			delete(s.buckets, key)
		}
	}
}
