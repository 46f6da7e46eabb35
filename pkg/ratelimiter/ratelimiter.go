// Package ratelimiter implements a token bucket with pluggable state: an
// in-process store for single instances and a Redis store shared by a fleet.
package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig     = errors.New("ratelimiter.invalid_config")
	ErrInvalidTokenCount = errors.New("ratelimiter.invalid_token_count")
	ErrStoreUnavailable  = errors.New("ratelimiter.store_unavailable")
)

// Config is a bucket of Capacity tokens gaining RefillRate tokens every
// RefillInterval.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	RefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Store keeps bucket state. ConsumeTokens refills, then takes n tokens if
// that many are available. A negative remaining means the request was
// denied and nothing was taken.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, n int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (r Result) Allowed() bool { return r.Remaining >= 0 }

// RetryAfter is zero for an allowed request.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

type Bucket struct {
	store  Store
	config Config
}

func NewBucket(store Store, cfg Config) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: store, config: cfg}, nil
}

func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.config)
	if err != nil {
		return Result{}, err
	}
	return Result{Limit: b.config.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}

func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}
