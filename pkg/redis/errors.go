package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis.empty_connection_url")
	ErrFailedToParseRedisConnString = errors.New("redis.invalid_connection_url")
	// ErrRedisNotReady is returned when the retry budget runs out before a ping succeeds.
	ErrRedisNotReady     = errors.New("redis.not_ready")
	ErrHealthcheckFailed = errors.New("redis.healthcheck_failed")
)
