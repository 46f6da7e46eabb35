package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type configCache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	cache = &configCache{values: make(map[reflect.Type]any)}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into v. The first successful parse of a
// given type is cached; later calls for the same type copy the cached value.
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := reflect.TypeOf((*T)(nil)).Elem()

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cached, ok := cache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure. Use it for configuration
// the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv applies the given .env files to the process environment without
// overriding variables that are already set.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// ResetCache drops every cached configuration. Intended for tests.
func ResetCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	clear(cache.values)
}
