package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/secrets"
	"github.com/onnwee/forcegraph/internal/server"
	"github.com/onnwee/forcegraph/internal/tracing"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	if envErr != nil {
		logger.Info("No .env file found, using system environment")
	}

	if cfg.OTELEnabled {
		if err := secrets.ValidateRequired("OTEL_EXPORTER_OTLP_ENDPOINT"); err != nil {
			logger.Error("Tracing is enabled but not configured", "error", err)
			os.Exit(1)
		}
	}

	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Error("Failed to initialize Sentry", "error", err, "dsn", secrets.MaskURL(cfg.SentryDSN))
	}
	defer errorreporting.Flush(2 * time.Second)

	shutdownTracing, err := tracing.Init(tracing.Options{
		Enabled:     cfg.OTELEnabled,
		ServiceName: "forcegraph",
		Version:     cfg.ServiceVersion,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err, "endpoint", secrets.MaskURL(cfg.OTELEndpoint))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	var layoutCache cache.Cache
	if lru, err := cache.NewLRU(cfg.CacheMaxSizeMB, cfg.CacheMaxEntries, cfg.CacheTTL); err != nil {
		logger.Warn("Layout cache disabled", "error", err)
	} else {
		defer lru.Close()
		layoutCache = lru
	}

	logger.Info("Starting forcegraph",
		"version", cfg.ServiceVersion,
		"addr", cfg.ServerAddr,
		"frame_interval", cfg.FrameInterval,
		"max_simulations", cfg.MaxSimulations,
		"rate_limit", cfg.EnableRateLimit,
		"sentry", errorreporting.IsSentryEnabled(),
		"sentry_dsn", secrets.MaskURL(cfg.SentryDSN),
		"otel_endpoint", secrets.MaskURL(cfg.OTELEndpoint))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, layoutCache).Run(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		errorreporting.CaptureError(err)
		errorreporting.Flush(2 * time.Second)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
