// Command posattd serves GRID position/attitude geometry over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/api"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/auth"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/detector"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gtistore"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/stream"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("POSATT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	dsCfg, err := loadDatasetConfig(logger)
	if err != nil {
		logger.Error("invalid dataset configuration", "error", err)
		os.Exit(1)
	}
	metrics.SetPointingWorkers(dsCfg.loader.Workers)

	store := geometry.NewStore()

	var archive *gtistore.Store
	if path := os.Getenv("POSATT_ARCHIVE_DB"); path != "" {
		archive, err = gtistore.Open(path)
		if err != nil {
			logger.Error("failed to open GTI archive", "path", path, "error", err)
			os.Exit(1)
		}
		defer archive.Close()
		logger.Info("GTI archive opened", "path", path)
	}

	streamCfg := loadStreamConfig(logger)
	streams := stream.NewHandler(store, streamCfg, logger)

	srv := api.NewServer(api.Config{
		Addr:       addr,
		Auth:       authCfg,
		MaxSamples: envInt(logger, "POSATT_MAX_SAMPLES", api.DefaultMaxSamples),
		Workers:    dsCfg.loader.Workers,
	}, logger, store, archive, streams)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The server starts before the first dataset so probes can report
	// not-ready while telemetry is loading.
	go reloadLoop(ctx, store, dsCfg, logger)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetDatasetAge(time.Duration(age * float64(time.Second)))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"detector", dsCfg.loader.Detector.ID,
			"source", dsCfg.loader.SourceName,
			"archive_enabled", archive != nil,
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

type datasetConfig struct {
	loader         geometry.Loader
	reloadInterval time.Duration // 0 disables periodic reloads
	retryInterval  time.Duration
}

// reloadLoop builds the first dataset, retrying until it succeeds, and then
// refreshes it every reloadInterval. A failed refresh keeps the current
// dataset published.
func reloadLoop(ctx context.Context, store *geometry.Store, cfg datasetConfig, logger *slog.Logger) {
	for {
		err := store.Reload(ctx, cfg.loader.Build)
		if err == nil {
			break
		}
		logger.Warn("initial dataset load failed, retrying",
			"error", err,
			"retry_seconds", cfg.retryInterval.Seconds(),
		)
		select {
		case <-time.After(cfg.retryInterval):
		case <-ctx.Done():
			return
		}
	}

	if cfg.reloadInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.reloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := store.Reload(ctx, cfg.loader.Build); err != nil {
				logger.Warn("dataset reload failed, keeping current dataset", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("POSATT_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("POSATT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("POSATT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("POSATT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadDatasetConfig resolves the telemetry source and detector. A local
// file in POSATT_TELEMETRY wins over POSATT_TELEMETRY_URL.
func loadDatasetConfig(logger *slog.Logger) (datasetConfig, error) {
	cfg := datasetConfig{
		loader: geometry.Loader{
			Workers: runtime.NumCPU(),
			Logger:  logger,
		},
		reloadInterval: 10 * time.Minute,
		retryInterval:  30 * time.Second,
	}

	cfgPath := os.Getenv("POSATT_DETECTOR_CONFIG")
	if cfgPath == "" {
		cfgPath = "detectors.toml"
	}
	detCfg, err := detector.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	id := os.Getenv("POSATT_DETECTOR")
	if id == "" {
		id = detCfg.Detectors[0].ID
	}
	if cfg.loader.Detector, err = detCfg.Lookup(id); err != nil {
		return cfg, err
	}

	switch path, url := os.Getenv("POSATT_TELEMETRY"), os.Getenv("POSATT_TELEMETRY_URL"); {
	case path != "":
		cfg.loader.Source = telemetry.CSVSource{Path: path, Logger: logger}
		cfg.loader.SourceName = path
	case url != "":
		cacheDir := os.Getenv("POSATT_CACHE_DIR")
		if cacheDir == "" {
			cacheDir = "/tmp/posatt/telemetry"
		}
		cfg.loader.Source = telemetry.HTTPSource{
			Fetcher: telemetry.NewFetcher(url),
			Cache:   telemetry.NewCache(cacheDir, envInt(logger, "POSATT_CACHE_MAX_FILES", 5)),
			Logger:  logger,
		}
		cfg.loader.SourceName = url
	default:
		return cfg, errors.New("one of POSATT_TELEMETRY or POSATT_TELEMETRY_URL is required")
	}

	cfg.loader.Workers = envInt(logger, "POSATT_WORKERS", cfg.loader.Workers)

	if v := os.Getenv("POSATT_RELOAD_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid POSATT_RELOAD_INTERVAL value, using default", "value", v, "default", 600)
		} else {
			cfg.reloadInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("dataset config",
		"detector", cfg.loader.Detector.ID,
		"detector_config", cfgPath,
		"source", cfg.loader.SourceName,
		"workers", cfg.loader.Workers,
		"reload_interval_seconds", cfg.reloadInterval.Seconds(),
	)
	return cfg, nil
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "POSATT_STREAM_MAX_CONCURRENT", 10),
		MaxConcurrent:      envInt(logger, "POSATT_STREAM_MAX_TOTAL", 1000),
		KeepaliveInterval:  time.Duration(envInt(logger, "POSATT_STREAM_KEEPALIVE_INTERVAL", 30)) * time.Second,
	}

	if v := os.Getenv("POSATT_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid POSATT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)
	return cfg
}

// envInt reads a positive integer, warning and falling back to def on
// invalid values.
func envInt(logger *slog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}
