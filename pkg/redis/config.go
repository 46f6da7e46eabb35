package redis

import "time"

// Config configures the Redis client. An empty ConnectionURL means Redis is
// not used and in-process stores take its place.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"` // redis://:password@localhost:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"notifykit:"`
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool { return c.ConnectionURL != "" }
