package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/observability"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/platform/kv"
	"github.com/invox/invox/internal/view"
	"github.com/invox/invox/report"
)

// Runtime holds the long-lived services shared by the server, worker and CLI.
type Runtime struct {
	Config    *Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	KV        kv.Store
	Store     *persistence.Store
	Editor    *invoice.Editor
	Templates *view.Engine
	Gotenberg *report.Client
	Exporter  *export.Exporter
	Sinks     []export.Sink

	closers []func()
}

// Build connects the configured backend and assembles the services. The
// current invoice is restored from the store; a corrupt payload is logged and
// the default document is kept.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	backend, closeKV, err := kv.Open(ctx, cfg.KVOptions())
	if err != nil {
		return nil, fmt.Errorf("app: open %s store: %w", cfg.StoreDriver, err)
	}
	rt.closers = append(rt.closers, closeKV)
	rt.KV = backend
	rt.Store = persistence.New(backend, logger)

	editor, err := newEditor(cfg, rt.Store, logger, rt.Metrics)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if err := editor.Restore(ctx); err != nil {
		logger.Warn("starting with default invoice", slog.Any("error", err))
	}
	rt.Editor = editor

	templates, err := view.NewEngine()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("app: parse templates: %w", err)
	}
	rt.Templates = templates

	rt.Gotenberg = report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	rt.Exporter = export.New(export.Config{
		Surface:    templates,
		Rasterizer: export.GotenbergRasterizer{Client: rt.Gotenberg},
		Printer:    rt.Gotenberg,
		Calculator: editor.Calculator(),
		Scale:      cfg.ExportScale,
		Observer:   rt.Metrics,
		Logger:     logger,
	})

	rt.Sinks = []export.Sink{export.FileSink{Dir: cfg.ExportDir}}
	if cfg.ObjectStoreEnabled() {
		sink, err := export.NewObjectSink(ctx, export.ObjectStoreConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.StoreNamespace,
		})
		if err != nil {
			logger.Warn("object storage disabled", slog.Any("error", err))
		} else {
			rt.Sinks = append(rt.Sinks, sink)
		}
	}
	return rt, nil
}

func newEditor(cfg *Config, store invoice.Store, logger *slog.Logger, metrics *observability.Metrics) (*invoice.Editor, error) {
	ids, err := invoice.NewIDGenerator(cfg.IDStrategy)
	if err != nil {
		return nil, err
	}
	policy, err := invoice.ParseNegativePolicy(cfg.TotalsNegativePolicy)
	if err != nil {
		return nil, err
	}
	gate, err := invoice.ParseGatePolicy(cfg.ValidationGate)
	if err != nil {
		return nil, err
	}
	return invoice.NewEditor(invoice.EditorConfig{
		Store:          store,
		IDs:            ids,
		Policy:         policy,
		Gate:           gate,
		Logger:         logger,
		Currency:       cfg.DefaultCurrency,
		OnPersistError: func(error) { metrics.PersistFailed() },
	}), nil
}

// Close releases backend connections in reverse order.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
