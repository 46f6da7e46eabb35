package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/secrets"
)

// SealedStore encrypts Channel.Config before it reaches the underlying store
// and decrypts it on the way out. The sealed form is a JSON string; each
// channel's key is derived from its ID, so a blob copied to another channel
// does not open.
type SealedStore struct {
	next Store
	box  *secrets.Box
}

func NewSealedStore(next Store, box *secrets.Box) *SealedStore {
	return &SealedStore{next: next, box: box}
}

func (s *SealedStore) ListEnabled(ctx context.Context) ([]Channel, error) {
	chs, err := s.next.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	return s.openAll(chs)
}

func (s *SealedStore) List(ctx context.Context) ([]Channel, error) {
	chs, err := s.next.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.openAll(chs)
}

func (s *SealedStore) Get(ctx context.Context, id string) (Channel, error) {
	ch, err := s.next.Get(ctx, id)
	if err != nil {
		return Channel{}, err
	}
	return s.open(ch)
}

func (s *SealedStore) Save(ctx context.Context, ch Channel) (Channel, error) {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	plain := ch.Config
	if len(plain) == 0 {
		plain = json.RawMessage("{}")
	}
	sealed, err := s.box.Seal(sealScope(ch.ID), plain)
	if err != nil {
		return Channel{}, err
	}
	blob, err := json.Marshal(sealed)
	if err != nil {
		return Channel{}, err
	}
	ch.Config = blob

	saved, err := s.next.Save(ctx, ch)
	if err != nil {
		return Channel{}, err
	}
	saved.Config = plain
	return saved, nil
}

func (s *SealedStore) Delete(ctx context.Context, id string) error {
	return s.next.Delete(ctx, id)
}

func (s *SealedStore) openAll(chs []Channel) ([]Channel, error) {
	var errs []error
	out := make([]Channel, 0, len(chs))
	for _, ch := range chs {
		opened, err := s.open(ch)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, opened)
	}
	return out, errors.Join(errs...)
}

func (s *SealedStore) open(ch Channel) (Channel, error) {
	var sealed string
	if err := json.Unmarshal(ch.Config, &sealed); err != nil {
		return ch, fmt.Errorf("%w: channel %s config is not sealed", ErrInvalidConfig, ch.ID)
	}
	plain, err := s.box.Open(sealScope(ch.ID), sealed)
	if err != nil {
		return ch, fmt.Errorf("%w: channel %s: %w", ErrInvalidConfig, ch.ID, err)
	}
	ch.Config = plain
	return ch, nil
}

func sealScope(id string) string { return "channel:" + id }
