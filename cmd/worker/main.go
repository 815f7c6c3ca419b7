package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/a4s/shopledger/internal/app"
	"github.com/a4s/shopledger/internal/inventory"
	jobmetrics "github.com/a4s/shopledger/internal/jobs"
	"github.com/a4s/shopledger/internal/platform/db"
	"github.com/a4s/shopledger/internal/reporting"
	"github.com/a4s/shopledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	loc := cfg.Location()
	metrics := jobmetrics.NewMetrics(nil)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), nil, inventory.ServiceConfig{Location: loc, Logger: logger})
	reportingService := reporting.NewService(reporting.NewRepository(pool), inventoryService, reporting.ServiceConfig{
		Quota:    cfg.MechanicQuota,
		Location: loc,
		Logger:   logger,
	})

	lowStockJob := jobs.NewLowStockScanJob(inventoryService, logger, metrics)
	dailyCloseJob := jobs.NewDailyCloseJob(reportingService, loc, logger, metrics)

	lowStockTask, err := jobs.NewLowStockScanTask("scheduled")
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}
	dailyCloseTask, err := jobs.NewDailyCloseTask("")
	if err != nil {
		logger.Error("build daily close task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.AsynqRedis(),
		Logger:    logger,
		Location:  loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
			{Type: jobs.TaskDailyClose, Handler: dailyCloseJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LowStockCron, Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.DailyCloseCron, Task: dailyCloseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
