package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 5m
quiz:
  ttl: 2m
backend:
  url: http://authority:8080
  timeout: 3s
attempt:
  submit_timeout: 20s
events:
  topic: attempts.test
log:
  level: debug
  format: text
`), 0o600))
	t.Setenv("BACKEND_URL", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://authority:8080", cfg.Backend.URL)
	assert.Equal(t, "attempts.test", cfg.Events.Topic)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 20*time.Second, TTLDuration(cfg.Attempt.SubmitTimeout, time.Minute))
	assert.True(t, cfg.Logger().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, cfg.Logger().Enabled(context.Background(), slog.LevelInfo))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://remote")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://remote", cfg.Backend.URL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QUIZ_TEST_FROM_DOTENV=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("QUIZ_TEST_FROM_DOTENV") })

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "yes", os.Getenv("QUIZ_TEST_FROM_DOTENV"))
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
}
