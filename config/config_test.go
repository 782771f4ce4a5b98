package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesDefaults(t *testing.T) {
	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Client.Origin)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 120*time.Second, cfg.Client.UploadTimeout)
	assert.Equal(t, "/health", cfg.Client.Path.Health)
	assert.Equal(t, "/api/csrf-token", cfg.Client.Path.CSRF)
	assert.Equal(t, "/login", cfg.Client.Path.Login)
	assert.Equal(t, "/unauthorized", cfg.Client.Path.Unauthorized)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.True(t, cfg.Retry.Jitter)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadBytesOverridesDefaults(t *testing.T) {
	yamlCfg := []byte(`
client:
  origin: https://admissions.example.edu
  timeout: 10s
retry:
  maxattempts: 5
  jitter: false
log:
  level: debug
`)
	cfg, err := LoadBytes(yamlCfg)
	require.NoError(t, err)

	assert.Equal(t, "https://admissions.example.edu", cfg.Client.Origin)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched defaults survive
	assert.Equal(t, "/api/csrf-token", cfg.Client.Path.CSRF)
}

func TestLoadBytesRejectsInvalidOrigin(t *testing.T) {
	_, err := LoadBytes([]byte("client:\n  origin: not-a-url\n"))
	assert.Error(t, err)
}

func TestLoadBytesRejectsZeroAttempts(t *testing.T) {
	_, err := LoadBytes([]byte("retry:\n  maxattempts: 0\n"))
	assert.Error(t, err)
}

func TestLoadBytesRejectsBadLogLevel(t *testing.T) {
	_, err := LoadBytes([]byte("log:\n  level: verbose\n"))
	assert.Error(t, err)
}

func TestLoadBytesRejectsRelativePaths(t *testing.T) {
	_, err := LoadBytes([]byte("client:\n  path:\n    login: login\n"))
	assert.Error(t, err)
}

func TestLoadBytesRejectsMalformedYAML(t *testing.T) {
	_, err := LoadBytes([]byte("client: ["))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORTAL_CLIENT_ORIGIN", "https://env.example.edu")
	t.Setenv("PORTAL_RETRY_MAXATTEMPTS", "4")

	cfg, err := LoadFile("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.edu", cfg.Client.Origin)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadFile("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Client.Origin)
}
