package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript mirrors MemoryStore.ConsumeTokens atomically. State is a
// hash of tokens and the last refill time in milliseconds; the key expires
// once a full refill would have happened anyway.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local n = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

local intervals = math.floor((now - ts) / interval)
if intervals > 0 then
	intervals = math.min(intervals, math.floor(capacity / rate) + 1)
	tokens = math.min(tokens + intervals * rate, capacity)
	ts = ts + intervals * interval
	if tokens == capacity then
		ts = now
	end
end

local remaining = tokens - n
if remaining >= 0 then
	tokens = remaining
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], (math.floor(capacity / rate) + 1) * interval)
return {remaining, ts + interval}
`)

// RedisStore shares buckets between service instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix + "ratelimit:", now: time.Now}
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, n int, cfg Config) (int, time.Time, error) {
	vals, err := tokenBucketScript.Run(ctx, s.client, []string{s.prefix + key},
		cfg.Capacity, cfg.RefillRate, cfg.RefillInterval.Milliseconds(), s.now().UnixMilli(), n,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(vals) != 2 {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, errors.New("unexpected script reply"))
	}
	return int(vals[0]), time.UnixMilli(vals[1]), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
