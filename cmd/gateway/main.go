package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/adapter"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/aggregator"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/cache"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/fetcher"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/ratelimit"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/server"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	env := config.AppEnvironment()
	cfg, err := config.LoadConfig(*configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !config.IsProductionLike(env):
		log.WithError(err).WithFields(logger.Fields{"environment": env}).Warn("config file not found; using built-in defaults")
		cfg = config.Default()
	default:
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if config.IsProductionLike(env) {
		cfg.Logging.Format = "json"
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithComponent("main").WithFields(logger.Fields{
		"service":     cfg.Gateway.Name,
		"version":     cfg.Gateway.Version,
		"environment": env,
		"sources":     cfg.EnabledSources(),
	}).Info("starting gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Prometheus {
		metrics.Init()
	}
	if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch); err != nil {
		log.WithComponent("main").WithError(err).Warn("CloudWatch metrics disabled")
	}

	adapters, err := adapter.FromConfig(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to build source adapters")
		os.Exit(1)
	}

	responses := cache.New(cfg.Cache.MaxSize)
	limits := ratelimit.NewRegistry(cfg.RateLimits)
	upstream := fetcher.New(cfg, responses, limits)
	agg := aggregator.New(cfg, upstream, adapters)

	srv := server.NewServer(cfg, agg, responses, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.WithComponent("main").Info("shutdown signal received")
		select {
		case err := <-errCh:
			if err != nil {
				log.WithComponent("main").WithError(err).Warn("http server shutdown failed")
			}
			log.WithComponent("main").Info("graceful shutdown completed")
		case <-time.After(30 * time.Second):
			log.WithComponent("main").Warn("graceful shutdown timeout exceeded")
		}
	case err := <-errCh:
		if err != nil {
			log.WithComponent("main").WithError(err).Error("http server stopped")
			os.Exit(1)
		}
	}

	log.WithComponent("main").Info("gateway stopped")
}
