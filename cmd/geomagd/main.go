package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/geomag/geomagd/internal/api"
	"github.com/geomag/geomagd/internal/auth"
	"github.com/geomag/geomagd/internal/config"
	"github.com/geomag/geomagd/internal/field"
	"github.com/geomag/geomagd/internal/igrf"
	"github.com/geomag/geomagd/internal/metrics"
)

func main() {
	cfg, err := config.Load(os.Getenv("GEOMAG_CONFIG"))
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))

	store := igrf.NewStore(nil)
	coeffCache := igrf.NewCache(cfg.Model.CacheDir, cfg.Model.MaxCacheFiles)

	// Prefer a cached coefficient file over the embedded table, so a set
	// fetched on a previous run survives restarts.
	if data, ts, err := coeffCache.LoadLatest(); err == nil {
		set, perr := igrf.Parse(bytes.NewReader(data), logger)
		if perr != nil {
			logger.Warn("failed to parse cached coefficient file, falling back to embedded table", "error", perr)
		} else {
			set.Source = "cache"
			set.LoadedAt = ts
			store.Set(set)
			logger.Info("loaded coefficient set from cache",
				"snapshots", len(set.Models), "cached_at", ts.Format(time.RFC3339))
		}
	}
	if store.Get() == nil {
		set := igrf.Default()
		store.Set(set)
		first, last := set.EpochSpan()
		logger.Info("loaded embedded coefficient set",
			"snapshots", len(set.Models), "epoch_start", first, "epoch_end", last)
	}
	metrics.SetModelSetSnapshots(len(store.Get().Models))

	evaluator := field.NewEvaluator(store)
	pool := field.NewWorkerPool(cfg.Grid.Workers, logger)

	var refresh func(ctx context.Context) error
	if cfg.Model.FetchEnabled {
		fetcher := igrf.NewFetcher(cfg.Model.FetchURL)
		refresh = func(ctx context.Context) error {
			return refreshModelSet(ctx, logger, fetcher, coeffCache, store)
		}
	}

	authCfg := auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token}
	srv := api.NewServer(cfg.Server.Addr, logger, authCfg, api.Deps{
		Store:         store,
		Evaluator:     evaluator,
		Pool:          pool,
		GridMaxPoints: cfg.Grid.MaxPoints,
		TrustProxy:    cfg.Server.TrustProxy,
		Refresh:       refresh,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if refresh != nil {
		go fetchLoop(ctx, logger, refresh, time.Duration(cfg.Model.FetchIntervalHours)*time.Hour)
	}

	// Background goroutine to update the model set age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetModelSetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"auth_enabled", authCfg.Enabled,
			"fetch_enabled", cfg.Model.FetchEnabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshModelSet fetches, parses, caches and installs a coefficient set.
// The store mutex serializes concurrent refreshes (background loop and the
// on-demand endpoint).
func refreshModelSet(ctx context.Context, logger *slog.Logger, fetcher *igrf.Fetcher, coeffCache *igrf.Cache, store *igrf.Store) error {
	store.Lock()
	defer store.Unlock()

	data, err := fetcher.Fetch(ctx)
	if err != nil {
		metrics.RecordCoeffFetch(false)
		return err
	}
	set, err := igrf.Parse(bytes.NewReader(data), logger)
	if err != nil {
		metrics.RecordCoeffFetch(false)
		return err
	}
	metrics.RecordCoeffFetch(true)

	now := time.Now().UTC()
	set.Source = fetcher.SourceURL()
	set.LoadedAt = now
	if err := coeffCache.Write(data, now); err != nil {
		logger.Warn("failed to cache fetched coefficient file", "error", err)
	}

	store.Set(set)
	metrics.SetModelSetSnapshots(len(set.Models))
	logger.Info("installed fetched coefficient set", "snapshots", len(set.Models), "source", set.Source)
	return nil
}

// fetchLoop refreshes the coefficient set on a fixed interval. An initial
// refresh runs immediately so a stale cache gets replaced at startup.
func fetchLoop(ctx context.Context, logger *slog.Logger, refresh func(context.Context) error, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * 7 * time.Hour
	}

	if err := refresh(ctx); err != nil {
		logger.Warn("initial coefficient fetch failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				logger.Warn("scheduled coefficient fetch failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
