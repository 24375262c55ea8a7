package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/invox/invox/internal/app"
	jobmetrics "github.com/invox/invox/internal/jobs"
	"github.com/invox/invox/internal/platform/kv"
	"github.com/invox/invox/jobs"
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
	if cfg.StoreDriver == kv.DriverMemory {
		logger.Warn("worker with memory store sees no saved invoices; set STORE_DRIVER to redis or postgres")
	}

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build runtime", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close()

	exportJob := &jobs.ExportJob{
		Saved:    rt.Store,
		Renderer: rt.Exporter,
		Sinks:    rt.Sinks,
		Logger:   logger,
		Metrics:  jobmetrics.NewMetrics(nil),
	}

	var cron []jobs.CronRegistration
	if cfg.ExportAllCron != "" {
		task, err := jobs.NewExportAllTask(jobs.ExportAllPayload{})
		if err != nil {
			logger.Error("build export-all task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ExportAllCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceExport, Handler: exportJob.Handle},
			{Type: jobs.TaskInvoiceExportAll, Handler: exportJob.HandleAll},
		},
		Cron: cron,
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
