package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/reporting-service/internal/config"
	"github.com/spec-kit/reporting-service/internal/observability"
	"github.com/spec-kit/reporting-service/internal/persistence"
	"github.com/spec-kit/reporting-service/internal/queue"
	"github.com/spec-kit/reporting-service/internal/repository"
	"github.com/spec-kit/reporting-service/internal/service"
	"github.com/spec-kit/reporting-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store, err := persistence.NewObjectStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init object store", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Warn("unable to ensure bucket", zap.Error(err))
	}

	pool := pg.PoolHandle()
	reportService := service.NewReportService(
		repository.NewUserRepository(pool),
		repository.NewFileRepository(pool),
		store,
	)

	reportWorker := worker.NewReportWorker(
		queue.New(redis.Client, "reports"),
		reportService,
		logger,
		observability.NewMetrics(),
	)

	if err := reportWorker.Run(ctx); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
