package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benchguard/benchguard/internal/alerts"
	"github.com/benchguard/benchguard/internal/api"
	"github.com/benchguard/benchguard/internal/cache"
	"github.com/benchguard/benchguard/internal/config"
	"github.com/benchguard/benchguard/internal/engine"
	"github.com/benchguard/benchguard/internal/ingest"
	"github.com/benchguard/benchguard/internal/metrics"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/policies"
	"github.com/benchguard/benchguard/internal/repo"
	"github.com/benchguard/benchguard/internal/services"
	"github.com/benchguard/benchguard/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting benchguard",
		slog.String("address", cfg.Server.Address),
		slog.String("store", cfg.Store.Driver),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		cacheProvider = cache.NewMemoryProvider()
	}
	defer cacheProvider.Close()

	store, err := repo.Open(repo.Options{
		Driver: cfg.Store.Driver,
		SQLite: repo.SQLiteConfig{
			Path:           cfg.Store.Path,
			BusyTimeout:    cfg.Store.BusyTimeout,
			MaxConnections: cfg.Store.MaxConnections,
			MaxRetries:     cfg.Store.MaxRetries,
		},
		Cache:     cacheProvider,
		PolicyTTL: cfg.Cache.ThresholdTTL,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	seeds, err := policies.LoadFile(cfg.Thresholds.Path)
	if err != nil {
		logger.Error("failed to load thresholds", slog.String("path", cfg.Thresholds.Path), slog.Any("error", err))
		os.Exit(1)
	}
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	seeded, err := policies.Apply(seedCtx, logger, store, seeds)
	cancelSeed()
	if err != nil {
		logger.Error("failed to seed thresholds", slog.Int("seeded", seeded), slog.Any("error", err))
		os.Exit(1)
	}

	regressionEngine := engine.NewEngine(logger, store, store)
	sink := alerts.NewSink(logger, store, cacheProvider, cfg.Cache.AlertTTL)
	ingestor := ingest.NewIngestor(logger, store, regressionEngine, sink, cfg.Engine.Concurrency)

	engineService := services.NewEngineService(logger, services.Dependencies{
		Evaluator:  regressionEngine,
		Reports:    ingestor,
		Thresholds: store,
		Alerts:     store,
		Defaults: models.ThresholdPolicy{
			MinSampleSize: cfg.Engine.Defaults.MinSampleSize,
			MaxSampleSize: cfg.Engine.Defaults.MaxSampleSize,
			Window:        cfg.Engine.Defaults.Window,
		},
	})

	server, err := api.NewServer(cfg.Server, engineService)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("benchguard stopped", slog.Duration("evaluation_p95", engineService.LatencyP95()))
}
