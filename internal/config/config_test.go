package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "addr: \":9090\"\nhistory_limit: 50\nkeepalive_interval: 10s\nallowed_origins:\n  - example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CHATCORE_HISTORY_LIMIT", "5")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, 5, cfg.HistoryLimit)
	require.Equal(t, 10*time.Second, cfg.KeepaliveInterval)
	require.Equal(t, []string{"example.com"}, cfg.AllowedOrigins)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadRejectsInvalidDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_driver: mongo\n"), 0o600))

	_, _, err := Load(nil, path)
	require.ErrorContains(t, err, "unsupported database_driver")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	pg := Default()
	pg.DatabaseDriver = DriverPostgres
	require.ErrorContains(t, pg.Validate(), "database_dsn is required")

	pg.DatabaseDSN = "postgres://localhost/chat"
	require.NoError(t, pg.Validate())

	bad := Default()
	bad.KeepaliveInterval = 0
	require.Error(t, bad.Validate())
}

func TestUpdateFromKeepsZeroFields(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", LogLevel: "debug"})

	require.Equal(t, ":7000", cfg.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, Default().HistoryLimit, cfg.HistoryLimit)
}
