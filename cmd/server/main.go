package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgo/docrepo/internal/app"
	"github.com/forgo/docrepo/internal/config"
	"github.com/forgo/docrepo/internal/handler"
	"github.com/forgo/docrepo/internal/jobs"
	"github.com/forgo/docrepo/internal/logging"
	"github.com/forgo/docrepo/internal/middleware"
	"github.com/forgo/docrepo/internal/provision"
)

func main() {
	configPath := flag.String("config", "", "config file (default $"+config.ConfigFileEnv+")")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logging
	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// Open the document store
	ctx := context.Background()
	backend, err := openBackend(ctx, cfg, reg, logger)
	if err != nil {
		slog.Error("failed to open document store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = backend.Close() }()

	if cfg.Store.Manifest != "" {
		manifest, err := provision.LoadManifest(cfg.Store.Manifest)
		if err != nil {
			slog.Error("failed to load manifest", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if _, err := provision.NewProvisioner(backend.Store, logger).Ensure(ctx, manifest); err != nil {
			slog.Error("failed to provision collections", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Start background jobs
	if reg != nil && cfg.Metrics.StatsInterval > 0 {
		stats := jobs.NewCollectionStats(backend.Store, reg, cfg.Metrics.StatsInterval, logger)
		stats.Start()
		defer stats.Stop()
	}

	// Initialize handlers
	documentHandler := handler.NewDocumentHandler(backend.Store, cfg.Store.Collections)
	healthHandler := handler.NewHealthHandler(backend.Ping)

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", healthHandler.Health)

	if reg != nil {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	// Document endpoints
	documentHandler.RegisterRoutes(mux)

	// Apply global middleware
	middlewares := []middleware.Middleware{
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.CORS.AllowedOrigins),
	}
	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		})
		defer rateLimiter.Stop()
		middlewares = append(middlewares, middleware.RateLimit(rateLimiter))
	}
	middlewares = append(middlewares, middleware.Compress)
	wrapped := middleware.Chain(mux, middlewares...)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("backend", cfg.Store.Backend),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}

// openBackend never hands OpenStore a typed nil registerer.
func openBackend(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) (*app.Backend, error) {
	if reg == nil {
		return app.OpenStore(ctx, cfg, nil, logger)
	}
	return app.OpenStore(ctx, cfg, reg, logger)
}
