package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/archive"
	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine"
	httpadapter "github.com/couchcryptid/burn-severity-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/burn-severity-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/burn-severity-service/internal/adapter/redis"
	"github.com/couchcryptid/burn-severity-service/internal/config"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
	"github.com/couchcryptid/burn-severity-service/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readiness := httpadapter.Readiness{}

	// Optional shared cache tier (feature-flagged via REDIS_ADDR).
	var store earthengine.Store
	var redisStore *redisadapter.Store
	if cfg.RedisEnabled {
		redisStore, err = redisadapter.NewStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = redisStore
		readiness = append(readiness, redisStore)
		logger.Info("redis cache tier enabled", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	}

	engine, err := earthengine.Connect(ctx, cfg, store, metrics, logger)
	if err != nil {
		logger.Error("failed to authenticate with earth engine", "error", err)
		os.Exit(1)
	}
	logger.Info("earth engine client ready", "project", cfg.EngineProject, "cache_size", cfg.CacheSize, "cache_ttl", cfg.CacheTTL)

	// Report sinks (feature-flagged via REPORT_TOPIC / MINIO_ENDPOINT).
	var sinks []pipeline.ReportSink
	var writer *kafkaadapter.Writer
	if cfg.PublishEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("report publishing enabled", "topic", cfg.ReportTopic, "brokers", cfg.KafkaBrokers)
	}
	if cfg.ArchiveEnabled {
		archiver, err := archive.NewMinioArchiver(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialise report archive", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, archiver)
		readiness = append(readiness, archiver)
		logger.Info("report archive enabled", "endpoint", cfg.MinioEndpoint, "bucket", cfg.ArchiveBucket)
	}

	p := pipeline.New(engine, sinks, logger, metrics, pipeline.Options{
		MaxConcurrency:    cfg.EngineMaxConcurrency,
		MaxVectorFeatures: cfg.EngineMaxVectorFeatures,
	})
	readiness = append(readiness, p)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, readiness, metrics, logger, cfg.AnalysisTimeout)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
