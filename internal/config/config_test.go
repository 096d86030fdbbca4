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
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 2112, cfg.Server.MetricsPort)
	assert.Equal(t, 15, cfg.Generation.BatchSize)
	assert.Equal(t, 1000, cfg.Generation.MaxRecords)
	assert.Equal(t, "responses", cfg.Generation.OutputDir)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "meta-llama/llama-4-maverick-17b-128e-instruct", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 2.0, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, "https://api.duckduckgo.com", cfg.Search.BaseURL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "fabrica_history.db", cfg.History.Path)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabrica.yaml")
	content := `
server:
  port: 9000
generation:
  batch_size: 20
  output_dir: /tmp/out
llm:
  model: test-model
  timeout: 30s
redis:
  enabled: true
  addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Generation.BatchSize)
	assert.Equal(t, "/tmp/out", cfg.Generation.OutputDir)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)

	// Unset keys keep their defaults.
	assert.Equal(t, 1000, cfg.Generation.MaxRecords)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("FABRICA_SERVER_PORT", "8080")
	t.Setenv("FABRICA_GENERATION_BATCH_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Generation.BatchSize)
}

func TestAPIKeyFromEnvironmentOnly(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("GROQ_API_KEY", "gsk-primary")
	t.Setenv("FABRICA_LLM_API_KEY", "fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gsk-primary", cfg.LLM.APIKey)
}

func TestAPIKeyFallbackEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("FABRICA_LLM_API_KEY", "fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.LLM.APIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabrica.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  batch_size: 0\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabrica.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}
