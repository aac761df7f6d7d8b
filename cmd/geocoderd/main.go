package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mlcrowe/geocode-reconciler/internal/adapter/bing"
	"github.com/mlcrowe/geocode-reconciler/internal/adapter/google"
	httpadapter "github.com/mlcrowe/geocode-reconciler/internal/adapter/http"
	kafkaadapter "github.com/mlcrowe/geocode-reconciler/internal/adapter/kafka"
	"github.com/mlcrowe/geocode-reconciler/internal/broker"
	"github.com/mlcrowe/geocode-reconciler/internal/config"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
	"github.com/mlcrowe/geocode-reconciler/internal/geography"
	"github.com/mlcrowe/geocode-reconciler/internal/observability"
	"github.com/mlcrowe/geocode-reconciler/internal/pipeline"
	"github.com/mlcrowe/geocode-reconciler/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var counties []domain.County
	if cfg.CountiesPath != "" {
		counties, err = geography.LoadCounties(cfg.CountiesPath)
		if err != nil {
			logger.Error("failed to load county seed", "path", cfg.CountiesPath, "error", err)
			os.Exit(1)
		}
		logger.Info("county seed loaded", "path", cfg.CountiesPath, "count", len(counties))
	}
	geo := geography.NewResolver(counties, logger)

	// Providers with an empty key stay disabled; config guarantees at
	// least one is configured.
	var clients []pipeline.ProviderClient
	var brokers []broker.Broker
	if cfg.GoogleMapsKey != "" {
		clients = append(clients, google.NewClient(cfg.GoogleMapsKey, cfg.ProviderTimeout, logger))
		brokers = append(brokers, broker.NewGoogle(geo, logger))
		logger.Info("google provider enabled")
	}
	if cfg.BingMapsKey != "" {
		clients = append(clients, bing.NewClient(cfg.BingMapsKey, cfg.ProviderTimeout, logger))
		brokers = append(brokers, broker.NewBing(geo, logger))
		logger.Info("bing provider enabled")
	}

	var responseStore pipeline.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		responseStore = store.NewRedis(client, cfg.ResponseTTL)
		logger.Info("redis response store enabled", "addr", cfg.RedisAddr, "ttl", cfg.ResponseTTL)
	} else {
		memStore, err := store.NewMemory(cfg.ResponseCacheSize)
		if err != nil {
			logger.Error("failed to create response store", "error", err)
			os.Exit(1)
		}
		responseStore = memStore
		logger.Info("in-memory response store enabled", "max_requests", cfg.ResponseCacheSize)
	}

	p := pipeline.New(pipeline.Config{
		Clients:         clients,
		Registry:        broker.NewRegistry(brokers...),
		Scorer:          domain.NewScorer(geo, nil, logger),
		Reducer:         domain.NewReducer(cfg.ScoreCliff, cfg.PreferredEngine),
		Policy:          domain.NewRefreshPolicy(cfg.StaleAfter),
		Store:           responseStore,
		Logger:          logger,
		Metrics:         metrics,
		ProviderTimeout: cfg.ProviderTimeout,
		MaxRetries:      cfg.ProviderMaxRetries,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		go func() {
			if err := p.Run(ctx, reader, writer); err != nil {
				logger.Error("job loop error", "error", err)
			}
		}()
		logger.Info("deferred mode enabled",
			"brokers", cfg.KafkaBrokers, "jobs_topic", cfg.KafkaJobsTopic, "results_topic", cfg.KafkaResultsTopic)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
