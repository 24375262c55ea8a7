package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/view"
	"github.com/invox/invox/report"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		img.Set(w/2, y, color.Black)
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestFilename(t *testing.T) {
	cases := map[string]string{
		"INV-001":       "INV-001.pdf",
		"INV 2024  001": "INV-2024-001.pdf",
		"a/b\\c:d":      "a-b-c-d.pdf",
		"":              "invoice.pdf",
		"   ":           "invoice.pdf",
		"Q1\t<draft>?":  "Q1--draft--.pdf",
	}
	for in, want := range cases {
		assert.Equal(t, want, Filename(in), "number %q", in)
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 1, PageCount(100))
	assert.Equal(t, 1, PageCount(297))
	assert.Equal(t, 2, PageCount(297.5))
	assert.Equal(t, 3, PageCount(700))
}

func TestImageHeightMM(t *testing.T) {
	assert.InDelta(t, 297.0, ImageHeightMM(1588, 2246), 0.1)
	assert.Equal(t, 0.0, ImageHeightMM(0, 100))
}

func TestPaginateSplitsTallBitmap(t *testing.T) {
	// 100px wide, 300px tall => 630mm => 3 pages.
	pdf, pages, err := Paginate(pngOf(t, 100, 300))
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, pages, err = Paginate(pngOf(t, 210, 200))
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestPaginateRejectsGarbage(t *testing.T) {
	_, _, err := Paginate([]byte("not an image"))
	assert.Error(t, err)
}

type stubRasterizer struct {
	img   []byte
	err   error
	scale float64
	html  string
}

func (s *stubRasterizer) Rasterize(_ context.Context, html string, scale float64) ([]byte, error) {
	s.scale = scale
	s.html = html
	return s.img, s.err
}

type stubPrinter struct{ html string }

func (p *stubPrinter) RenderHTML(_ context.Context, html string) ([]byte, error) {
	p.html = html
	return []byte("%PDF-vector"), nil
}

type emptySurface struct{}

func (emptySurface) SurfaceHTML(invoice.Document, invoice.Totals, view.SurfaceOptions) (string, error) {
	return "  ", nil
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveExport(kind, outcome string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind+":"+outcome)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestExporter(t *testing.T, r Rasterizer, p Printer, obs Observer) *Exporter {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	return New(Config{Surface: engine, Rasterizer: r, Printer: p, Observer: obs, Logger: quietLogger()})
}

func TestExportProducesNamedPDF(t *testing.T) {
	r := &stubRasterizer{img: pngOf(t, 100, 150)}
	obs := &recordingObserver{}
	e := newTestExporter(t, r, nil, obs)

	doc := invoice.Default(time.Now())
	doc.Meta.Number = "INV 42"
	res, err := e.Export(context.Background(), doc, view.ThemeProfessional)
	require.NoError(t, err)
	assert.Equal(t, "INV-42.pdf", res.Filename)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2.0, r.scale)
	assert.Contains(t, r.html, "INV 42")
	assert.Equal(t, []string{"raster:success"}, obs.calls)
}

func TestExportRasterizeFailure(t *testing.T) {
	boom := errors.New("chromium down")
	obs := &recordingObserver{}
	e := newTestExporter(t, &stubRasterizer{err: boom}, nil, obs)

	_, err := e.Export(context.Background(), invoice.Default(time.Now()), view.ThemeMinimal)
	var rerr *RasterizeError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"raster:failure"}, obs.calls)
}

func TestExportSurfaceUnavailable(t *testing.T) {
	e := New(Config{Surface: emptySurface{}, Rasterizer: &stubRasterizer{}, Logger: quietLogger()})
	_, err := e.Export(context.Background(), invoice.Default(time.Now()), view.ThemeMinimal)
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)

	engine, err := view.NewEngine()
	require.NoError(t, err)
	e = New(Config{Surface: engine, Rasterizer: &stubRasterizer{}, Logger: quietLogger()})
	_, err = e.Export(context.Background(), invoice.Default(time.Now()), view.Theme("neon"))
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
}

func TestPrintUsesVectorRoute(t *testing.T) {
	p := &stubPrinter{}
	e := newTestExporter(t, nil, p, nil)
	res, err := e.Print(context.Background(), invoice.Default(time.Now()), view.ThemeMinimal)
	require.NoError(t, err)
	assert.Equal(t, "INV-001.pdf", res.Filename)
	assert.Equal(t, "%PDF-vector", string(res.PDF))
	assert.Contains(t, p.html, "Acme Corporation")
}

type stubScreenshotter struct {
	html string
	opts report.ScreenshotOptions
}

func (s *stubScreenshotter) Screenshot(_ context.Context, html string, opts report.ScreenshotOptions) ([]byte, error) {
	s.html = html
	s.opts = opts
	return []byte("png"), nil
}

func TestGotenbergRasterizerScalesViewport(t *testing.T) {
	shot := &stubScreenshotter{}
	_, err := GotenbergRasterizer{Client: shot}.Rasterize(context.Background(), "<html><head></head><body></body></html>", 2)
	require.NoError(t, err)
	assert.Equal(t, 1588, shot.opts.Width)
	assert.Equal(t, 2246, shot.opts.Height)
	assert.Contains(t, shot.html, "<style>html{zoom:2}</style></head>")
}

func TestFileSinkWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	loc, err := FileSink{Dir: dir}.Put(context.Background(), "INV-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "INV-1.pdf"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"))
	}
}

type stubUploader struct {
	bucket, object, contentType string
	body                        []byte
}

func (s *stubUploader) PutObject(_ context.Context, bucket, object string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	s.bucket, s.object, s.contentType = bucket, object, opts.ContentType
	s.body, _ = io.ReadAll(reader)
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func TestObjectSinkUploadsPDF(t *testing.T) {
	up := &stubUploader{}
	loc, err := ObjectSink{Client: up, Bucket: "invoices", Prefix: "exports"}.Put(context.Background(), "INV-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "s3://invoices/exports/INV-1.pdf", loc)
	assert.Equal(t, "application/pdf", up.contentType)
	assert.Equal(t, "%PDF", string(up.body))
}
