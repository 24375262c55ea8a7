package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	exportsTotal    *prometheus.CounterVec
	exportDuration  *prometheus.HistogramVec
	exportPages     prometheus.Histogram
	persistFailures prometheus.Counter
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invox_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invox_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invox_exports_total",
		Help: "Invoice exports by kind (raster, print) and outcome.",
	}, []string{"kind", "outcome"})
	exportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invox_export_duration_seconds",
		Help:    "Time spent producing an invoice PDF.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})
	pages := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invox_export_pages",
		Help:    "Pages per raster export.",
		Buckets: []float64{1, 2, 3, 5, 8, 13},
	})
	persist := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invox_persist_failures_total",
		Help: "Write-through saves of the current invoice that failed.",
	})
	registry.MustRegister(requests, duration, exports, exportDuration, pages, persist)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		exportsTotal:    exports,
		exportDuration:  exportDuration,
		exportPages:     pages,
		persistFailures: persist,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveExport records one export attempt.
func (m *Metrics) ObserveExport(kind, outcome string, pages int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(kind, outcome).Inc()
	m.exportDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if pages > 0 {
		m.exportPages.Observe(float64(pages))
	}
}

// PersistFailed counts a failed write-through save.
func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
