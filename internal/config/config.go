package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vjranagit/mbseries/pkg/provider"
	"github.com/vjranagit/mbseries/pkg/revision"
	"github.com/vjranagit/mbseries/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Storage  StorageConfig  `json:"storage"`
	Engine   EngineConfig   `json:"engine"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr string        `json:"listen_addr"`
	Timeout    time.Duration `json:"timeout"`
}

// ProviderConfig holds the provider gateway settings
type ProviderConfig struct {
	URL               string        `json:"url"`
	UserAgent         string        `json:"user_agent"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	MaxRetries        int           `json:"max_retries"`
	Timeout           time.Duration `json:"timeout"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Enabled          bool          `json:"enabled"`
	Path             string        `json:"path"`
	RetentionDays    int           `json:"retention_days"`
	CompressionLevel int           `json:"compression_level"`
	CacheCapacity    int           `json:"cache_capacity"`
	CacheTTL         time.Duration `json:"cache_ttl"`
}

// EngineConfig holds alignment and revision settings
type EngineConfig struct {
	MaxRevisions    int    `json:"max_revisions"`
	DefaultCurrency string `json:"default_currency"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Load reads the given env files, .env.local and .env by default, and
// builds the configuration from the environment. Missing files are skipped
// and variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return DefaultConfig(), nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
			Timeout:    getEnvDuration("SERVER_TIMEOUT", 30*time.Second),
		},
		Provider: ProviderConfig{
			URL:               getEnv("PROVIDER_URL", "http://localhost:9400"),
			UserAgent:         getEnv("PROVIDER_USER_AGENT", "mbseries/0.1"),
			RequestsPerSecond: getEnvFloat("PROVIDER_RPS", 5),
			MaxRetries:        getEnvInt("PROVIDER_MAX_RETRIES", 3),
			Timeout:           getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		},
		Storage: StorageConfig{
			Enabled:          getEnvBool("STORAGE_ENABLED", true),
			Path:             getEnv("STORAGE_PATH", "./data"),
			RetentionDays:    getEnvInt("RETENTION_DAYS", 1),
			CompressionLevel: getEnvInt("COMPRESSION_LEVEL", 3),
			CacheCapacity:    getEnvInt("CACHE_CAPACITY", 1024),
			CacheTTL:         getEnvDuration("CACHE_TTL", 10*time.Minute),
		},
		Engine: EngineConfig{
			MaxRevisions:    getEnvInt("MAX_REVISIONS", revision.DefaultMaxRevisions),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", provider.DefaultCurrency),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Path:             c.Storage.Path,
		RetentionDays:    c.Storage.RetentionDays,
		CompressionLevel: c.Storage.CompressionLevel,
		CacheCapacity:    c.Storage.CacheCapacity,
		CacheTTL:         c.Storage.CacheTTL,
	}
}

// ToClientConfig converts to provider.ClientConfig
func (c *Config) ToClientConfig() provider.ClientConfig {
	return provider.ClientConfig{
		BaseURL:           strings.TrimRight(c.Provider.URL, "/"),
		UserAgent:         c.Provider.UserAgent,
		RequestsPerSecond: c.Provider.RequestsPerSecond,
		MaxRetries:        c.Provider.MaxRetries,
		Timeout:           c.Provider.Timeout,
	}
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return level, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server listen address is required"))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, errors.New("server timeout must be positive"))
	}

	if u, err := url.Parse(c.Provider.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("provider url %q is not an absolute URL", c.Provider.URL))
	}
	if c.Provider.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("provider requests per second cannot be negative"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("provider max retries cannot be negative"))
	}

	if c.Storage.Enabled {
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage path is required"))
		}
		if c.Storage.RetentionDays < 1 {
			errs = append(errs, errors.New("retention days must be at least 1"))
		}
		if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
			errs = append(errs, errors.New("compression level must be between 1 and 4"))
		}
	}
	if c.Storage.CacheCapacity < 1 {
		errs = append(errs, errors.New("cache capacity must be at least 1"))
	}
	if c.Storage.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}

	if c.Engine.MaxRevisions < 1 {
		errs = append(errs, errors.New("max revisions must be at least 1"))
	}
	if err := (&provider.UnifiedRequest{IDs: []string{"-"}, Currency: c.Engine.DefaultCurrency}).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("default currency: %w", err))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
