// Package export turns the rendered invoice preview into a paginated A4 PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/view"
)

// ErrSurfaceUnavailable is returned when the preview cannot be rendered.
var ErrSurfaceUnavailable = errors.New("export: preview surface unavailable")

// RasterizeError wraps failures converting the surface into a bitmap.
type RasterizeError struct {
	Err error
}

func (e *RasterizeError) Error() string { return "export: rasterize: " + e.Err.Error() }

func (e *RasterizeError) Unwrap() error { return e.Err }

// SurfaceRenderer produces the standalone preview HTML.
type SurfaceRenderer interface {
	SurfaceHTML(doc invoice.Document, totals invoice.Totals, opts view.SurfaceOptions) (string, error)
}

// Rasterizer converts HTML into a PNG at the given oversampling scale.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string, scale float64) ([]byte, error)
}

// Printer converts HTML straight into a vector PDF.
type Printer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Observer records export outcomes.
type Observer interface {
	ObserveExport(kind, outcome string, pages int, elapsed time.Duration)
}

// Result is a finished PDF.
type Result struct {
	Filename string
	PDF      []byte
	Pages    int
}

// Config wires an Exporter.
type Config struct {
	Surface    SurfaceRenderer
	Rasterizer Rasterizer
	Printer    Printer
	Calculator invoice.Calculator
	Scale      float64
	Observer   Observer
	Logger     *slog.Logger
}

// Exporter renders, rasterizes and paginates invoice snapshots. It holds no
// per-document state, so concurrent exports are independent.
type Exporter struct {
	cfg Config
}

// DefaultScale oversamples the bitmap so text stays sharp when printed.
const DefaultScale = 2

// New builds an Exporter.
func New(cfg Config) *Exporter {
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{cfg: cfg}
}

// Export produces the raster PDF for doc.
func (e *Exporter) Export(ctx context.Context, doc invoice.Document, theme view.Theme) (Result, error) {
	start := time.Now()
	res, err := e.export(ctx, doc, theme)
	e.observe("raster", start, res, err)
	return res, err
}

func (e *Exporter) export(ctx context.Context, doc invoice.Document, theme view.Theme) (Result, error) {
	html, err := e.surface(doc, theme)
	if err != nil {
		return Result{}, err
	}
	if e.cfg.Rasterizer == nil {
		return Result{}, &RasterizeError{Err: errors.New("no rasterizer configured")}
	}
	img, err := e.cfg.Rasterizer.Rasterize(ctx, html, e.cfg.Scale)
	if err != nil {
		return Result{}, &RasterizeError{Err: err}
	}
	pdf, pages, err := Paginate(img)
	if err != nil {
		return Result{}, &RasterizeError{Err: err}
	}
	return Result{Filename: Filename(doc.Meta.Number), PDF: pdf, Pages: pages}, nil
}

// Print produces a vector PDF of the same surface.
func (e *Exporter) Print(ctx context.Context, doc invoice.Document, theme view.Theme) (Result, error) {
	start := time.Now()
	res, err := e.print(ctx, doc, theme)
	e.observe("print", start, res, err)
	return res, err
}

func (e *Exporter) print(ctx context.Context, doc invoice.Document, theme view.Theme) (Result, error) {
	html, err := e.surface(doc, theme)
	if err != nil {
		return Result{}, err
	}
	if e.cfg.Printer == nil {
		return Result{}, errors.New("export: no printer configured")
	}
	pdf, err := e.cfg.Printer.RenderHTML(ctx, html)
	if err != nil {
		return Result{}, fmt.Errorf("export: print: %w", err)
	}
	return Result{Filename: Filename(doc.Meta.Number), PDF: pdf}, nil
}

func (e *Exporter) surface(doc invoice.Document, theme view.Theme) (string, error) {
	if e.cfg.Surface == nil {
		return "", ErrSurfaceUnavailable
	}
	html, err := e.cfg.Surface.SurfaceHTML(doc, e.cfg.Calculator.Compute(doc), view.SurfaceOptions{Theme: theme})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("%w: empty output", ErrSurfaceUnavailable)
	}
	return html, nil
}

func (e *Exporter) observe(kind string, start time.Time, res Result, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		e.cfg.Logger.Error("invoice export failed", slog.String("kind", kind), slog.Any("error", err))
	} else {
		e.cfg.Logger.Info("invoice exported", slog.String("kind", kind), slog.String("file", res.Filename), slog.Int("pages", res.Pages))
	}
	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveExport(kind, outcome, res.Pages, time.Since(start))
	}
}
