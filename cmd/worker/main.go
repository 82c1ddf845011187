package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fundline/fundline/internal/app"
	"github.com/fundline/fundline/internal/ledger"
	"github.com/fundline/fundline/internal/platform/cache"
	"github.com/fundline/fundline/internal/platform/db"
	"github.com/fundline/fundline/internal/shared"
	"github.com/fundline/fundline/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)

	earningsJob := jobs.NewEarningsPostJob(pool, ledgerService, logger)
	remindJob := jobs.NewInstallmentsRemindJob(pool, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger)

	earningsTask, err := jobs.NewEarningsPostTask(jobs.EarningsPostPayload{})
	if err != nil {
		logger.Error("build earnings task", slog.Any("error", err))
		os.Exit(1)
	}
	remindTask, err := jobs.NewInstallmentsRemindTask(jobs.InstallmentsRemindPayload{WithinDays: 7})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEarningsPost, Handler: earningsJob.Handle},
			{Type: jobs.TaskInstallmentsRemind, Handler: remindJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.EarningsPostCron, Task: earningsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.InstallmentRemindCron, Task: remindTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 4 * * 0", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
