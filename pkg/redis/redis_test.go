package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/redis"
)

func TestConnect_Errors(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://not-redis"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)

	_, err = redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestConfig_Enabled(t *testing.T) {
	t.Parallel()

	assert.False(t, redis.Config{}.Enabled())
	assert.True(t, redis.Config{ConnectionURL: "redis://localhost:6379/0"}.Enabled())
}
