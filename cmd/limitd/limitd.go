package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"limitd/internal/api"
	"limitd/internal/config"
	"limitd/internal/logger"
	"limitd/internal/models"
	"limitd/internal/observability"
	"limitd/internal/ratelimit"
	"limitd/internal/settings"
	"limitd/internal/storage"
	"limitd/internal/version"
	"limitd/internal/warnings"
)

var configFile = flag.String("config", "", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	if err := seedDefaultSettings(context.Background(), activeStorage); err != nil {
		slog.Error("Failed to seed default settings", "error", err)
		os.Exit(1)
	}

	// Settings source: remote platform-settings endpoint when configured,
	// otherwise the local store.
	var source settings.Source
	if cfg.Limiter.SettingsURL != "" {
		source = settings.NewHTTPSource(cfg.Limiter.SettingsURL)
	} else {
		source = settings.NewStoreSource(activeStorage)
	}
	settingsCache := settings.NewCache(source, cfg.Limiter.SettingsTTL)

	// Warning pipeline: always persist locally, optionally forward.
	sinks := []warnings.Sink{warnings.NewStoreSink(activeStorage)}
	if cfg.Limiter.WarningsURL != "" {
		sinks = append(sinks, warnings.NewHTTPSink(cfg.Limiter.WarningsURL, cfg.Security.InternalHeaderValue))
	}
	dispatcher := warnings.NewDispatcher(cfg.Limiter.WarningBuffer, cfg.Limiter.WarningsPerSecond, sinks...)
	defer dispatcher.Close()

	// Initialize HTTP handlers with storage for health checks
	handlers := api.NewHandlers(activeStorage,
		api.WithSecurityConfig(cfg.Security),
		api.WithSettingsInvalidator(settingsCache.Invalidate),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Initialize the rate limiter if enabled
	if cfg.Limiter.Enabled {
		counters, err := initializeCounters(cfg)
		if err != nil {
			slog.Error("Failed to initialize counter store", "error", err)
			os.Exit(1)
		}
		defer counters.Close()

		classifier := ratelimit.NewClassifier(cfg.Limiter.StrictPrefixes, cfg.Limiter.ExemptPrefixes)
		limiter := ratelimit.NewLimiter(classifier, settingsCache, counters, dispatcher)

		mwOpts := []ratelimit.MiddlewareOption{}
		if cfg.Metrics.Enabled {
			limiterMetrics, err := observability.NewLimiterMetrics()
			if err != nil {
				slog.Error("Failed to create limiter metrics", "error", err)
				os.Exit(1)
			}
			mwOpts = append(mwOpts, ratelimit.WithMetrics(limiterMetrics))
		}

		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(limiter, mwOpts...)))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeCounters creates the request counter store based on configuration.
func initializeCounters(cfg *models.Config) (ratelimit.CounterStore, error) {
	switch cfg.Limiter.Store {
	case models.CounterStoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ratelimit.NewRedisCounters(ctx, cfg.Limiter.Redis)
	case models.CounterStoreMemory:
		return ratelimit.NewMemoryCounters(cfg.Limiter.SweepInterval), nil
	default:
		return nil, fmt.Errorf("unsupported counter store: %s", cfg.Limiter.Store)
	}
}

// seedDefaultSettings writes the built-in limit configuration into an empty
// store so the admin API has something to show and edit. Idempotent: a store
// with any route limits is left alone.
func seedDefaultSettings(ctx context.Context, store storage.Storage) error {
	existing, err := store.RouteLimits(ctx)
	if err != nil {
		return fmt.Errorf("read route limits: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	defaults := models.DefaultPlatformSettings()
	if err := store.SavePlatformSettings(ctx, defaults); err != nil {
		return fmt.Errorf("seed default settings: %w", err)
	}
	slog.Info("seeded default rate limit settings",
		"route_limits", len(defaults.RateLimitConfigurations))
	return nil
}
