package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "APP_ENV", "DATABASE_URL", "INTER_ROUND_PAUSE_MS", "LOBBY_TTL_MINUTES", "LOBBY_IDLE_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3*time.Second, cfg.InterRoundPause())
	assert.Equal(t, 2*time.Hour, cfg.LobbyTTL())
	assert.Equal(t, 2*time.Minute, cfg.LobbyIdleTimeout())
	assert.False(t, cfg.Development())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/lastlife")
	t.Setenv("INTER_ROUND_PAUSE_MS", "0")
	t.Setenv("GAME_OVER_PAUSE_MS", "1500")
	t.Setenv("CLEANUP_INTERVAL_MINUTES", "1")
	t.Setenv("PUBLIC_LOBBY_LIMIT", "5")
	t.Setenv("DB_MAX_OPEN_CONNS", "3")
	t.Setenv("LOBBY_IDLE_TIMEOUT_SECONDS", "0")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.True(t, cfg.Development())
	assert.Equal(t, "postgres://localhost/lastlife", cfg.DatabaseURL)
	assert.Equal(t, time.Duration(0), cfg.InterRoundPause())
	assert.Equal(t, 1500*time.Millisecond, cfg.GameOverPause())
	assert.Equal(t, time.Minute, cfg.CleanupInterval())
	assert.Equal(t, 5, cfg.PublicLobbyLimit)
	assert.Equal(t, 3, cfg.DBMaxOpenConns)
	assert.Equal(t, time.Duration(0), cfg.LobbyIdleTimeout(), "zero disables idle reaping")
}

func TestLoad_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("LOBBY_TTL_MINUTES", "soon")
	t.Setenv("PUBLIC_LOBBY_LIMIT", "-1")
	t.Setenv("STATS_TIMEOUT_SECONDS", "0")

	cfg := Load()
	def := Default()
	assert.Equal(t, def.LobbyTTLMinutes, cfg.LobbyTTLMinutes)
	assert.Equal(t, def.PublicLobbyLimit, cfg.PublicLobbyLimit)
	assert.Equal(t, def.StatsTimeoutSeconds, cfg.StatsTimeoutSeconds)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LASTLIFE_DOTENV_TEST=from-file\n"), 0o600))
	t.Setenv("LASTLIFE_DOTENV_TEST", "")
	os.Unsetenv("LASTLIFE_DOTENV_TEST")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LASTLIFE_DOTENV_TEST"))
}
