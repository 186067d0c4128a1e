package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/pkg/config"
)

type testConfig struct {
	Name      string        `env:"CONFIG_TEST_NAME" envDefault:"fallback"`
	BatchSize int           `env:"CONFIG_TEST_BATCH_SIZE" envDefault:"1000"`
	Timeout   time.Duration `env:"CONFIG_TEST_TIMEOUT" envDefault:"25s"`
}

type requiredConfig struct {
	Token string `env:"CONFIG_TEST_REQUIRED_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when env is unset", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "fallback", cfg.Name)
		assert.Equal(t, 1000, cfg.BatchSize)
		assert.Equal(t, 25*time.Second, cfg.Timeout)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_NAME", "custom")
		t.Setenv("CONFIG_TEST_BATCH_SIZE", "250")
		t.Setenv("CONFIG_TEST_TIMEOUT", "5s")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "custom", cfg.Name)
		assert.Equal(t, 250, cfg.BatchSize)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg requiredConfig
			config.MustLoad(&cfg)
		})
	})
}
