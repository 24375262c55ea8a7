package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	jobmetrics "github.com/invox/invox/internal/jobs"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/platform/kv"
	"github.com/invox/invox/internal/view"
)

var jobNow = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

type stubRenderer struct {
	mu       sync.Mutex
	themes   []view.Theme
	inFlight int32
	peak     int32
	err      error
}

func (s *stubRenderer) Export(_ context.Context, doc invoice.Document, theme view.Theme) (export.Result, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	s.themes = append(s.themes, theme)
	s.mu.Unlock()
	if s.err != nil {
		return export.Result{}, s.err
	}
	return export.Result{Filename: export.Filename(doc.Meta.Number), PDF: []byte("%PDF-" + doc.Meta.Number), Pages: 1}, nil
}

type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memorySink) Put(_ context.Context, name string, pdf []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = pdf
	return "mem://" + name, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seededStore(t *testing.T, names ...string) (*persistence.Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	store := persistence.New(mem, quiet())
	for _, name := range names {
		doc := invoice.Demo(jobNow)
		require.NoError(t, store.SaveNamed(context.Background(), name, doc))
	}
	return store, mem
}

func newJob(store *persistence.Store, r Renderer, sink export.Sink) (*ExportJob, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := jobmetrics.NewMetrics(reg)
	return &ExportJob{Saved: store, Renderer: r, Sinks: []export.Sink{sink}, Logger: quiet(), Metrics: m}, reg
}

func exportedCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "invox_job_invoices_exported_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleExportsNamedInvoice(t *testing.T) {
	store, _ := seededStore(t, "acme-june")
	sink := &memorySink{}
	r := &stubRenderer{}
	job, _ := newJob(store, r, sink)

	task, err := NewExportTask(ExportPayload{Name: "acme-june", Theme: "professional"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Contains(t, sink.files, "acme-june.pdf")
	assert.Equal(t, []view.Theme{view.ThemeProfessional}, r.themes)
}

func TestHandleSkipsRetryForBadInput(t *testing.T) {
	store, _ := seededStore(t)
	job, _ := newJob(store, &stubRenderer{}, &memorySink{})
	ctx := context.Background()

	err := job.Handle(ctx, asynq.NewTask(TaskInvoiceExport, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, _ := NewExportTask(ExportPayload{Name: "  "})
	assert.ErrorIs(t, job.Handle(ctx, task), asynq.SkipRetry)

	task, _ = NewExportTask(ExportPayload{Name: "x", Theme: "neon"})
	assert.ErrorIs(t, job.Handle(ctx, task), asynq.SkipRetry)

	task, _ = NewExportTask(ExportPayload{Name: "missing"})
	err = job.Handle(ctx, task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestHandleRetriesRenderFailures(t *testing.T) {
	store, _ := seededStore(t, "acme")
	job, reg := newJob(store, &stubRenderer{err: errors.New("gotenberg down")}, &memorySink{})

	task, _ := NewExportTask(ExportPayload{Name: "acme"})
	err := job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1.0, exportedCount(t, reg, "failure"))
}

func TestExportAllBoundsConcurrency(t *testing.T) {
	store, _ := seededStore(t, "a", "b", "c", "d", "e", "f")
	sink := &memorySink{}
	r := &stubRenderer{}
	job, reg := newJob(store, r, sink)

	names, err := job.ExportAll(context.Background(), view.ThemeMinimal, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, names)
	assert.Len(t, sink.files, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&r.peak), int32(2))
	assert.Equal(t, 6.0, exportedCount(t, reg, "success"))
}

func TestExportAllSkipsCorruptEntries(t *testing.T) {
	store, mem := seededStore(t, "good")
	ctx := context.Background()
	require.NoError(t, mem.Update(ctx, persistence.SavedKey, func(current string, _ bool) (string, error) {
		return current[:len(current)-1] + `,"broken":"{not json"}`, nil
	}))
	sink := &memorySink{}
	job, _ := newJob(store, &stubRenderer{}, sink)

	names, err := job.ExportAll(ctx, view.ThemeMinimal, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, names)
	assert.Len(t, sink.files, 1)
}

func TestHandleAllAcceptsEmptyPayload(t *testing.T) {
	store, _ := seededStore(t, "only")
	sink := &memorySink{}
	job, _ := newJob(store, &stubRenderer{}, sink)

	require.NoError(t, job.HandleAll(context.Background(), asynq.NewTask(TaskInvoiceExportAll, nil)))
	assert.Contains(t, sink.files, "only.pdf")
}
