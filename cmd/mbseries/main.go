package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vjranagit/mbseries/internal/config"
	"github.com/vjranagit/mbseries/pkg/api"
	"github.com/vjranagit/mbseries/pkg/provider"
	"github.com/vjranagit/mbseries/pkg/series"
	"github.com/vjranagit/mbseries/pkg/storage"
)

const (
	version = "0.1.0"
)

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting mbseries",
		"version", version,
		"listen_addr", cfg.Server.ListenAddr,
		"provider_url", cfg.Provider.URL,
		"storage_enabled", cfg.Storage.Enabled,
		"max_revisions", cfg.Engine.MaxRevisions)

	client := provider.NewClient(cfg.ToClientConfig())
	cache := storage.NewSeriesCache(cfg.Storage.CacheCapacity, cfg.Storage.CacheTTL)

	// Initialize storage
	var store storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.NewStore(cfg.ToStorageConfig())
		if err != nil {
			logger.Error("failed to initialize storage", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		defer store.Close()

		st := store.Stats()
		logger.Info("snapshot store opened",
			"path", cfg.Storage.Path,
			"series", st.Series,
			"snapshots", st.Snapshots,
			"size", humanize.Bytes(uint64(st.LSMBytes+st.VLogBytes)),
			"retention_days", cfg.Storage.RetentionDays)
	}

	cached := provider.NewCached(client, cache, store, logger)
	svc := series.NewService(cached, series.Options{
		MaxRevisions:    cfg.Engine.MaxRevisions,
		DefaultCurrency: cfg.Engine.DefaultCurrency,
		Logger:          logger,
	})

	server := api.NewServer(cfg.Server.ListenAddr, svc, api.Options{
		Cached:      cached,
		SeriesCache: cache,
		Store:       store,
		Timeout:     cfg.Server.Timeout,
		Logger:      logger,
	})

	// Start server in goroutine
	go func() {
		logger.Info("API server listening", "addr", cfg.Server.ListenAddr)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stats := cached.Stats()
	logger.Info("server stopped",
		"cache_hits", stats.Hits,
		"store_hits", stats.StoreHits,
		"misses", stats.Misses)
}
