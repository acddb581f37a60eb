package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := Load()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "attendance-storage", cfg.SnapshotKey)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.True(t, cfg.SubmissionSkip)
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("SUBMISSION_SKIP", "false")
	t.Setenv("REFRESH_TTL", "soon")

	cfg := Load()
	assert.True(t, cfg.Production())
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.False(t, cfg.SubmissionSkip)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL, "bad values fall back")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ROSTER_SOURCE=remote\nHTTP_PORT=9999\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_PORT", "7000")
	t.Cleanup(func() { os.Unsetenv("ROSTER_SOURCE") })

	cfg := Load()
	assert.Equal(t, "remote", cfg.RosterSource)
	assert.Equal(t, "7000", cfg.HTTPPort, "environment wins over .env")
}
