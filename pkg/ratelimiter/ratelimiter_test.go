package ratelimiter_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var cfg = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Second}

func TestNewBucketValidates(t *testing.T) {
	t.Parallel()
	store := ratelimiter.NewMemoryStore()

	for _, bad := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimiter.NewBucket(store, bad)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
	_, err := ratelimiter.NewBucket(nil, cfg)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)

	b, err := ratelimiter.NewBucket(store, cfg)
	require.NoError(t, err)
	_, err = b.AllowN(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestMemoryStoreBurstAndRefill(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(ratelimiter.WithMemoryClock(c.now)), cfg)
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 3 {
		res, err := b.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed(), "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	denied, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, denied.Allowed())
	assert.Equal(t, c.now().Add(time.Second), denied.ResetAt)

	other, err := b.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed(), "keys are independent")

	c.advance(1500 * time.Millisecond)
	res, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed(), "denied requests do not drain the bucket")
	assert.Equal(t, 0, res.Remaining)

	c.advance(time.Hour)
	res, err = b.AllowN(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining, "refill is capped at capacity")
}

func TestMemoryStoreSweepsIdleBuckets(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Now()}
	store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryClock(c.now), ratelimiter.WithStaleAfter(time.Minute))
	ctx := context.Background()

	_, _, err := store.ConsumeTokens(ctx, "a", 1, cfg)
	require.NoError(t, err)
	c.advance(2 * time.Minute)
	_, _, err = store.ConsumeTokens(ctx, "b", 1, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	require.NoError(t, store.Reset(ctx, "b"))
	assert.Zero(t, store.Len())
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()
	assert.Zero(t, ratelimiter.Result{Remaining: 0}.RetryAfter())
	assert.Greater(t, ratelimiter.Result{Remaining: -1, ResetAt: time.Now().Add(time.Minute)}.RetryAfter(), 50*time.Second)
	assert.Zero(t, ratelimiter.Result{Remaining: -1, ResetAt: time.Now().Add(-time.Minute)}.RetryAfter())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("NOTIFYKIT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NOTIFYKIT_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: url, RetryAttempts: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "test:"+uuid.NewString()+":"), cfg)
	require.NoError(t, err)

	for range 3 {
		res, err := b.Allow(ctx, "u1")
		require.NoError(t, err)
		require.True(t, res.Allowed())
	}
	res, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	require.NoError(t, b.Reset(ctx, "u1"))
	res, err = b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}
