package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/config"
)

type sample struct {
	Addr     string        `env:"ADDR" envDefault:":8080"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
	Prefixes []string      `env:"PREFIXES" envSeparator:"," envDefault:"/health,/metrics"`
}

type required struct {
	Secret string `env:"SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.Load[sample](config.WithEnvironment(map[string]string{}))
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, []string{"/health", "/metrics"}, cfg.Prefixes)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.Load[sample](
			config.WithPrefix("APP_"),
			config.WithEnvironment(map[string]string{"APP_ADDR": ":9000", "APP_TIMEOUT": "1m"}),
		)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, time.Minute, cfg.Timeout)
	})

	t.Run("required value missing", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load[required](config.WithEnvironment(map[string]string{}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrParsingConfig))
	})

	t.Run("must load panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			config.MustLoad[required](config.WithEnvironment(map[string]string{}))
		})
	})
}
