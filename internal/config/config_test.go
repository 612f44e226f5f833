package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500, cfg.Engine.MaxRevisions)
	assert.Equal(t, "USD", cfg.Engine.DefaultCurrency)
	assert.True(t, cfg.Storage.Enabled)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9191")
	t.Setenv("PROVIDER_URL", "https://gateway.example.com/")
	t.Setenv("PROVIDER_RPS", "2.5")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("STORAGE_ENABLED", "false")
	t.Setenv("MAX_REVISIONS", "not-a-number")

	cfg := DefaultConfig()
	assert.Equal(t, ":9191", cfg.Server.ListenAddr)
	assert.Equal(t, 2.5, cfg.Provider.RequestsPerSecond)
	assert.Equal(t, 90*time.Second, cfg.Storage.CacheTTL)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, 500, cfg.Engine.MaxRevisions)

	client := cfg.ToClientConfig()
	assert.Equal(t, "https://gateway.example.com", client.BaseURL)

	store := cfg.ToStorageConfig()
	assert.Equal(t, cfg.Storage.Path, store.Path)
	assert.Equal(t, cfg.Storage.CacheCapacity, store.CacheCapacity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"provider url", func(c *Config) { c.Provider.URL = "gateway" }},
		{"retries", func(c *Config) { c.Provider.MaxRetries = -1 }},
		{"retention", func(c *Config) { c.Storage.RetentionDays = 0 }},
		{"compression", func(c *Config) { c.Storage.CompressionLevel = 9 }},
		{"cache capacity", func(c *Config) { c.Storage.CacheCapacity = 0 }},
		{"max revisions", func(c *Config) { c.Engine.MaxRevisions = 0 }},
		{"currency", func(c *Config) { c.Engine.DefaultCurrency = "usd" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("storage checks skipped when disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Enabled = false
		cfg.Storage.RetentionDays = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LISTEN_ADDR=:9999\nMAX_REVISIONS=42\n"), 0o600))

	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("MAX_REVISIONS", "")
	os.Unsetenv("MAX_REVISIONS")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, 42, cfg.Engine.MaxRevisions)
}

func TestLoadMalformedEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROVIDER_URL=\"http://unterminated\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
