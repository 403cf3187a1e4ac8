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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.True(t, cfg.Limiter.Enabled)
	assert.Equal(t, "memory", cfg.Limiter.Store)
	assert.Equal(t, 5*time.Minute, cfg.Limiter.SettingsTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9999
limiter:
  settings_ttl: 1m
  strict_prefixes:
    - /api/billing
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Limiter.SettingsTTL)
	assert.Equal(t, []string{"/api/billing"}, cfg.Limiter.StrictPrefixes)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LIMITD_PORT", "7777")
	t.Setenv("LIMITD_STORAGE_TYPE", "json")
	t.Setenv("LIMITD_STORAGE_PATH", filepath.Join(t.TempDir(), "state.json"))
	t.Setenv("LIMITD_LOG_LEVEL", "warn")
	t.Setenv("LIMITD_SETTINGS_TTL", "2m")
	t.Setenv("LIMITD_EXEMPT_PREFIXES", "/api/public, /api/catalog")
	t.Setenv("LIMITD_WARNINGS_PER_SECOND", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Storage.Type)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 2*time.Minute, cfg.Limiter.SettingsTTL)
	assert.Equal(t, []string{"/api/public", "/api/catalog"}, cfg.Limiter.ExemptPrefixes)
	assert.Equal(t, 2.5, cfg.Limiter.WarningsPerSecond)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("LIMITD_PORT", "9001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestLoad_InvalidEnvValueIgnored(t *testing.T) {
	t.Setenv("LIMITD_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestSaveExample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.yaml")

	require.NoError(t, SaveExample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "your-admin-token-here")

	// The example must itself be loadable.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Security.EnableAuth)
}
