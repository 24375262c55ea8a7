package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	jobmetrics "github.com/invox/invox/internal/jobs"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/view"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultExportConcurrency = 4

// SavedSource reads the named invoice collection.
type SavedSource interface {
	GetNamed(ctx context.Context, name string) (invoice.Document, error)
	ListNamed(ctx context.Context) (persistence.Listing, error)
}

// Renderer produces a PDF for a document.
type Renderer interface {
	Export(ctx context.Context, doc invoice.Document, theme view.Theme) (export.Result, error)
}

// ExportJob renders saved invoices to PDF and hands them to every sink. Files
// are named after the saved name so bulk runs never collide on invoice numbers.
type ExportJob struct {
	Saved    SavedSource
	Renderer Renderer
	Sinks    []export.Sink
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle processes TaskInvoiceExport tasks.
func (j *ExportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Saved == nil || j.Renderer == nil {
		return errors.New("invoice export: handler not configured")
	}
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if strings.TrimSpace(payload.Name) == "" {
		return fmt.Errorf("invoice export: empty name: %w", asynq.SkipRetry)
	}
	theme, err := view.ParseTheme(payload.Theme)
	if err != nil {
		return fmt.Errorf("invoice export: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskInvoiceExport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	resultErr = j.ExportNamed(ctx, payload.Name, theme)
	if errors.Is(resultErr, persistence.ErrNotFound) || errors.Is(resultErr, persistence.ErrCorrupt) {
		return fmt.Errorf("%w: %w", resultErr, asynq.SkipRetry)
	}
	return resultErr
}

// ExportNamed exports one saved invoice to all sinks.
func (j *ExportJob) ExportNamed(ctx context.Context, name string, theme view.Theme) error {
	logger := j.logger().With(slog.String("name", name))
	doc, err := j.Saved.GetNamed(ctx, name)
	if err != nil {
		logger.Error("load saved invoice", slog.Any("error", err))
		return err
	}
	res, err := j.Renderer.Export(ctx, doc, theme)
	if err != nil {
		j.metrics().AddExported("failure", 1)
		return err
	}
	for _, sink := range j.Sinks {
		loc, err := sink.Put(ctx, export.Filename(name), res.PDF)
		if err != nil {
			j.metrics().AddExported("failure", 1)
			logger.Error("store exported invoice", slog.Any("error", err))
			return err
		}
		logger.Info("exported saved invoice", slog.String("location", loc), slog.Int("pages", res.Pages))
	}
	j.metrics().AddExported("success", 1)
	return nil
}

// HandleAll processes TaskInvoiceExportAll tasks.
func (j *ExportJob) HandleAll(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Saved == nil || j.Renderer == nil {
		return errors.New("invoice export-all: handler not configured")
	}
	var payload ExportAllPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	theme, err := view.ParseTheme(payload.Theme)
	if err != nil {
		return fmt.Errorf("invoice export-all: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskInvoiceExportAll)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	_, resultErr = j.ExportAll(ctx, theme, payload.Concurrency)
	return resultErr
}

// ExportAll exports every readable saved invoice with bounded concurrency and
// returns the names that were exported. Corrupt entries are logged and skipped.
func (j *ExportJob) ExportAll(ctx context.Context, theme view.Theme, concurrency int) ([]string, error) {
	listing, err := j.Saved.ListNamed(ctx)
	if err != nil {
		return nil, err
	}
	for name, reason := range listing.Corrupt {
		j.logger().Warn("skipping unreadable saved invoice", slog.String("name", name), slog.String("reason", reason))
	}
	if concurrency <= 0 {
		concurrency = defaultExportConcurrency
	}

	names := listing.Names()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, name := range names {
		doc := listing.Documents[name]
		g.Go(func() error {
			return j.exportDoc(gctx, name, doc, theme)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	j.logger().Info("exported saved invoices", slog.Int("count", len(names)))
	return names, nil
}

func (j *ExportJob) exportDoc(ctx context.Context, name string, doc invoice.Document, theme view.Theme) error {
	res, err := j.Renderer.Export(ctx, doc, theme)
	if err != nil {
		j.metrics().AddExported("failure", 1)
		return fmt.Errorf("export %q: %w", name, err)
	}
	for _, sink := range j.Sinks {
		if _, err := sink.Put(ctx, export.Filename(name), res.PDF); err != nil {
			j.metrics().AddExported("failure", 1)
			return fmt.Errorf("store %q: %w", name, err)
		}
	}
	j.metrics().AddExported("success", 1)
	return nil
}

func (j *ExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ExportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
