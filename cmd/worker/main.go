package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gapal/gapal/internal/app"
	jobmetrics "github.com/gapal/gapal/internal/jobs"
	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/platform/db"
	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The worker has no live hub; alerts are persisted and clients pick
	// them up over REST or on their next WebSocket init.
	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo)
	notificationsRepo := notifications.NewRepository(pool)
	dispatcher := notifications.NewService(notificationsRepo, nil, logger)

	metrics := jobmetrics.NewMetrics(nil)
	scanJob := jobs.NewExpirationScanJob(productsService, dispatcher, logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.ExpirationCron != "" {
		scanTask, err := jobs.NewExpirationScanTask(jobs.ExpirationScanPayload{})
		if err != nil {
			logger.Error("build expiration scan task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.ExpirationCron,
			Task:    scanTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExpirationScan, Handler: scanJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
