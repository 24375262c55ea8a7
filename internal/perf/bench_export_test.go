package perf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	jobmetrics "github.com/invox/invox/internal/jobs"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/platform/kv"
	"github.com/invox/invox/internal/view"
	"github.com/invox/invox/jobs"
)

var benchNow = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

func bigInvoice(n int) invoice.Document {
	doc := invoice.Default(benchNow)
	doc.LineItems = make([]invoice.LineItem, n)
	for i := range doc.LineItems {
		doc.LineItems[i] = invoice.LineItem{
			ID:          fmt.Sprint(i + 1),
			Description: fmt.Sprintf("Line %d", i+1),
			Quantity:    float64(i%7) + 0.5,
			UnitPrice:   19.99 + float64(i),
		}
	}
	doc.TaxRate = 8.25
	doc.DiscountValue = 3
	return doc
}

func tallPNG(b testing.TB, w, h int) []byte {
	b.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 8 {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func BenchmarkComputeTotals(b *testing.B) {
	doc := bigInvoice(500)
	calc := invoice.Calculator{Policy: invoice.ClampToZero}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = calc.Compute(doc)
	}
}

func BenchmarkSurfaceHTML(b *testing.B) {
	engine, err := view.NewEngine()
	if err != nil {
		b.Fatalf("engine: %v", err)
	}
	doc := bigInvoice(60)
	totals := invoice.Calculator{}.Compute(doc)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.SurfaceHTML(doc, totals, view.SurfaceOptions{Theme: view.ThemeProfessional}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPaginateThreePages(b *testing.B) {
	data := tallPNG(b, 1588, 6000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, pages, err := export.Paginate(data); err != nil || pages != 3 {
			b.Fatalf("paginate: pages=%d err=%v", pages, err)
		}
	}
}

type slowRenderer struct{ delay time.Duration }

func (s slowRenderer) Export(ctx context.Context, doc invoice.Document, _ view.Theme) (export.Result, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return export.Result{}, ctx.Err()
	}
	return export.Result{Filename: export.Filename(doc.Meta.Number), PDF: []byte("%PDF"), Pages: 1}, nil
}

type discardSink struct{}

func (discardSink) Put(context.Context, string, []byte) (string, error) { return "", nil }

func TestBulkExportThroughput(t *testing.T) {
	const saved = 40
	const delay = 10 * time.Millisecond

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := persistence.New(kv.NewMemory(), quiet)
	ctx := context.Background()
	for i := 0; i < saved; i++ {
		if err := store.SaveNamed(ctx, fmt.Sprintf("inv-%02d", i), invoice.Demo(benchNow)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	job := &jobs.ExportJob{
		Saved:    store,
		Renderer: slowRenderer{delay: delay},
		Sinks:    []export.Sink{discardSink{}},
		Logger:   quiet,
		Metrics:  jobmetrics.NewMetrics(reg),
	}
	task, err := jobs.NewExportAllTask(jobs.ExportAllPayload{Concurrency: 4})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := job.HandleAll(ctx, asynq.NewTask(task.Type(), task.Payload())); err != nil {
		t.Fatalf("export all: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if got := metricValue(t, families, "invox_job_invoices_exported_total", map[string]string{"outcome": "success"}); got != saved {
		t.Fatalf("exported %v invoices, want %d", got, saved)
	}
	if got := metricValue(t, families, "invox_jobs_total", map[string]string{"job": jobs.TaskInvoiceExportAll, "status": "success"}); got != 1 {
		t.Fatalf("job runs = %v, want 1", got)
	}
	sequential := (saved * delay).Seconds()
	if mean := histogramMean(t, families, "invox_job_duration_seconds", map[string]string{"job": jobs.TaskInvoiceExportAll}); mean > sequential*0.75 {
		t.Fatalf("bulk export not parallel: took %fs, sequential would be %fs", mean, sequential)
	}
}
