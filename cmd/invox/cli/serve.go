package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invox/invox/internal/app"
	invoicehttp "github.com/invox/invox/internal/invoice/http"
	"github.com/invox/invox/internal/platform/kv"
	"github.com/invox/invox/jobs"
	"github.com/invox/invox/report"
)

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, rt *app.Runtime) error {
	cfg, logger := rt.Config, rt.Logger
	if cfg.StoreDriver == kv.DriverMemory {
		logger.Warn("memory store: saved invoices are lost on restart and invisible to the worker")
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		InvoiceHandler: invoicehttp.NewHandler(logger, rt.Editor, rt.Store, rt.Exporter, rt.Templates, jobsClient, cfg.ExportRateLimit),
		ReportHandler:  report.NewHandler(rt.Gotenberg, logger),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        rt.Metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
