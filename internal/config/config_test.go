package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cashbattle-backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, 4*time.Second, cfg.BotInterval)
	require.Equal(t, 0.5, cfg.BotChance)
	require.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("BOT_INTERVAL", "2s")
	t.Setenv("ENV", "production")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, 2*time.Second, cfg.BotInterval)
	require.True(t, cfg.IsProduction())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	for _, key := range []string{"BOT_INTERVAL", "CLEANUP_INTERVAL", "SESSION_MAX_IDLE"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "0s")

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}
