package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// TokenStore caches provider access tokens across adapter calls. Get reports
// false for a missing or expired token.
type TokenStore interface {
	Get(ctx context.Context, key string) (*oauth2.Token, bool, error)
	Set(ctx context.Context, key string, tok *oauth2.Token) error
	Delete(ctx context.Context, key string) error
}

// MemoryTokenStore keeps tokens in a bounded LRU with per-entry expiry.
type MemoryTokenStore struct {
	lru *cache.LRUCache[string, *oauth2.Token]
}

func NewMemoryTokenStore(capacity int) *MemoryTokenStore {
	return &MemoryTokenStore{lru: cache.NewLRUCache[string, *oauth2.Token](capacity)}
}

func (s *MemoryTokenStore) Get(_ context.Context, key string) (*oauth2.Token, bool, error) {
	tok, ok := s.lru.Get(key)
	if !ok || !tok.Valid() {
		return nil, false, nil
	}
	return tok, true, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	if tok.Expiry.IsZero() {
		s.lru.Put(key, tok)
		return nil
	}
	ttl := time.Until(tok.Expiry)
	if ttl <= 0 {
		s.lru.Remove(key)
		return nil
	}
	s.lru.PutWithTTL(key, tok, ttl)
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

// RedisTokenStore shares tokens between service instances. Values are the
// JSON form of oauth2.Token with a matching key TTL.
type RedisTokenStore struct {
	db     redis.UniversalClient
	prefix string
}

func NewRedisTokenStore(db redis.UniversalClient, keyPrefix string) *RedisTokenStore {
	return &RedisTokenStore{db: db, prefix: keyPrefix + "token:"}
}

func (s *RedisTokenStore) Get(ctx context.Context, key string) (*oauth2.Token, bool, error) {
	raw, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("token store get: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, false, fmt.Errorf("token store decode: %w", err)
	}
	if !tok.Valid() {
		return nil, false, nil
	}
	return &tok, true, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		if ttl = time.Until(tok.Expiry); ttl <= 0 {
			return s.Delete(ctx, key)
		}
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("token store encode: %w", err)
	}
	if err := s.db.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("token store set: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, key string) error {
	if err := s.db.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("token store delete: %w", err)
	}
	return nil
}
