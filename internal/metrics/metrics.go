// Package metrics exposes Prometheus metrics for HTTP requests, exports,
// imports and background jobs.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bpm"

// Metrics holds the collectors of one process. Each Metrics has its own
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	exports     *prometheus.CounterVec
	exportNodes prometheus.Histogram
	imports     *prometheus.CounterVec
	importNodes *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var (
	_ jobs.Observer               = (*Metrics)(nil)
	_ service.PortabilityObserver = (*Metrics)(nil)
)

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portability",
			Name:      "exports_total",
			Help:      "Screen exports by result.",
		}, []string{"result"}),
		exportNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portability",
			Name:      "export_nodes",
			Help:      "Number of nodes in successful exports.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portability",
			Name:      "imports_total",
			Help:      "Payload imports by result.",
		}, []string{"result"}),
		importNodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portability",
			Name:      "imported_nodes_total",
			Help:      "Imported nodes by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portability",
			Name:      "duration_seconds",
			Help:      "Export and import latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Background jobs by type and final status.",
		}, []string{"type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Background job run time by type.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.exports, m.exportNodes, m.imports, m.importNodes, m.duration,
		m.jobs, m.jobDuration,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by chi route pattern. It must be mounted on a
// chi router so the pattern is known once the handler returns.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ExportFinished implements service.PortabilityObserver.
func (m *Metrics) ExportFinished(nodes int, elapsed time.Duration, err error) {
	m.exports.WithLabelValues(resultLabel(err)).Inc()
	m.duration.WithLabelValues("export").Observe(elapsed.Seconds())
	if err == nil {
		m.exportNodes.Observe(float64(nodes))
	}
}

// ImportFinished implements service.PortabilityObserver.
func (m *Metrics) ImportFinished(result *portability.Result, elapsed time.Duration, err error) {
	m.imports.WithLabelValues(resultLabel(err)).Inc()
	m.duration.WithLabelValues("import").Observe(elapsed.Seconds())
	if result == nil {
		return
	}
	for _, n := range result.Nodes {
		m.importNodes.WithLabelValues(string(n.Type), string(n.Outcome)).Inc()
	}
}

// JobFinished implements jobs.Observer.
func (m *Metrics) JobFinished(jobType string, status jobs.Status, elapsed time.Duration) {
	m.jobs.WithLabelValues(jobType, string(status)).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}

// resultLabel buckets errors into a small fixed label set.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, portability.ErrReferenceIntegrity):
		return "reference_integrity"
	case errors.Is(err, portability.ErrDuplicateStableID):
		return "duplicate_stable_id"
	case errors.Is(err, portability.ErrInvalidNode):
		return "validation"
	case errors.Is(err, portability.ErrInvalidPayload), errors.Is(err, portability.ErrInvalidOptions):
		return "invalid_payload"
	default:
		return "error"
	}
}
