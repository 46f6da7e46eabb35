package channels

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

// Store persists channel configurations.
type Store interface {
	// ListEnabled returns enabled channels only. The coordinator calls it
	// once per fan-out.
	ListEnabled(ctx context.Context) ([]Channel, error)
	List(ctx context.Context) ([]Channel, error)
	Get(ctx context.Context, id string) (Channel, error)
	// Save inserts or updates by ID. An empty ID is assigned.
	Save(ctx context.Context, ch Channel) (Channel, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a Store kept in process, ordered by creation.
type MemoryStore struct {
	mu       sync.RWMutex
	channels []Channel
	now      func() time.Time
}

func NewMemoryStore(chs ...Channel) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for _, ch := range chs {
		_, _ = s.Save(context.Background(), ch)
	}
	return s
}

func (s *MemoryStore) ListEnabled(_ context.Context) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.channels), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.channels[i], nil
	}
	return Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
}

func (s *MemoryStore) Save(_ context.Context, ch Channel) (Channel, error) {
	if err := ch.Validate(); err != nil {
		return Channel{}, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	ch.UpdatedAt = now
	if i := s.indexOf(ch.ID); i >= 0 {
		ch.CreatedAt = s.channels[i].CreatedAt
		ch.CreatedBy = s.channels[i].CreatedBy
		s.channels[i] = ch
		return ch, nil
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	s.channels = append(s.channels, ch)
	return ch, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	s.channels = slices.Delete(s.channels, i, i+1)
	return nil
}

func (s *MemoryStore) indexOf(id string) int {
	return slices.IndexFunc(s.channels, func(c Channel) bool { return c.ID == id })
}

// SeedFromFile loads a YAML seed file (environment variables expanded) and
// saves every channel into store. It returns the number of channels saved.
func SeedFromFile(ctx context.Context, store Store, path string) (int, error) {
	var f SeedFile
	if err := config.LoadYAML(path, &f); err != nil {
		return 0, err
	}
	now := time.Now()
	for i, seed := range f.Channels {
		ch, err := seed.Channel(now)
		if err != nil {
			return i, err
		}
		if _, err := store.Save(ctx, ch); err != nil {
			return i, fmt.Errorf("seed channel %q: %w", seed.Name, err)
		}
	}
	return len(f.Channels), nil
}
