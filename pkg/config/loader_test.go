package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

type dispatchConfig struct {
	Timeout time.Duration `env:"TEST_DISPATCH_TIMEOUT" envDefault:"15s"`
	Workers int           `env:"TEST_DISPATCH_WORKERS" envDefault:"4"`
	Enabled bool          `env:"TEST_DISPATCH_ENABLED" envDefault:"true"`
}

type cachedConfig struct {
	Value string `env:"TEST_CACHED_VALUE" envDefault:"default"`
}

type otherConfig struct {
	Value string `env:"TEST_OTHER_VALUE" envDefault:"other"`
}

type requiredConfig struct {
	Secret string `env:"TEST_REQUIRED_SECRET,required"`
}

type envFileConfig struct {
	Value string `env:"TEST_FROM_ENV_FILE"`
}

type seedChannel struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Secret  string `yaml:"secret"`
	Enabled bool   `yaml:"enabled"`
}

func TestLoad(t *testing.T) {
	t.Run("reads environment", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_DISPATCH_TIMEOUT", "3s")
		t.Setenv("TEST_DISPATCH_WORKERS", "16")
		t.Setenv("TEST_DISPATCH_ENABLED", "false")

		var cfg dispatchConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, 16, cfg.Workers)
		assert.False(t, cfg.Enabled)
	})

	t.Run("falls back to defaults", func(t *testing.T) {
		config.ResetCache()
		os.Unsetenv("TEST_DISPATCH_TIMEOUT")
		os.Unsetenv("TEST_DISPATCH_WORKERS")
		os.Unsetenv("TEST_DISPATCH_ENABLED")

		var cfg dispatchConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 15*time.Second, cfg.Timeout)
		assert.Equal(t, 4, cfg.Workers)
		assert.True(t, cfg.Enabled)
	})

	t.Run("caches per type", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_CACHED_VALUE", "first")

		var first cachedConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("TEST_CACHED_VALUE", "second")
		var second cachedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "first", second.Value)

		var other otherConfig
		require.NoError(t, config.Load(&other))
		assert.Equal(t, "other", other.Value)
	})

	t.Run("missing required value", func(t *testing.T) {
		config.ResetCache()
		os.Unsetenv("TEST_REQUIRED_SECRET")

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *dispatchConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("TEST_REQUIRED_SECRET")

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})

	config.ResetCache()
	t.Setenv("TEST_REQUIRED_SECRET", "s3cr3t")
	assert.NotPanics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
		assert.Equal(t, "s3cr3t", cfg.Secret)
	})
}

func TestLoadEnv(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("TEST_FROM_ENV_FILE")
	t.Cleanup(func() { os.Unsetenv("TEST_FROM_ENV_FILE") })

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	var cfg envFileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "from_file", cfg.Value)

	err := config.LoadEnv("testdata/.env.missing")
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)

	assert.NoError(t, config.LoadEnv())
}

func TestLoadYAML(t *testing.T) {
	t.Run("expands environment references", func(t *testing.T) {
		t.Setenv("TEST_DINGTALK_SECRET", "SECabc")

		var seeds []seedChannel
		require.NoError(t, config.LoadYAML("testdata/channels.yaml", &seeds))
		require.Len(t, seeds, 1)
		assert.Equal(t, "ops-dingtalk", seeds[0].ID)
		assert.Equal(t, "dingtalk", seeds[0].Kind)
		assert.Equal(t, "SECabc", seeds[0].Secret)
		assert.True(t, seeds[0].Enabled)
	})

	t.Run("missing file", func(t *testing.T) {
		var seeds []seedChannel
		err := config.LoadYAML(filepath.Join(t.TempDir(), "none.yaml"), &seeds)
		assert.ErrorIs(t, err, config.ErrReadingFile)
	})

	t.Run("unknown field", func(t *testing.T) {
		var seeds []seedChannel
		err := config.DecodeYAML([]byte("- id: x\n  colour: red\n"), &seeds)
		assert.ErrorIs(t, err, config.ErrDecodingFile)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var seeds *[]seedChannel
		assert.ErrorIs(t, config.LoadYAML("testdata/channels.yaml", seeds), config.ErrNilPointer)
	})
}
