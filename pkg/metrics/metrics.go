package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

type Config struct {
	Enabled   bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"vidkit"`
}

// Metrics owns the collectors of one process. Its methods match the hook
// signatures of the packages they observe so they can be passed directly.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	providerCalls  *prometheus.HistogramVec
	uploadedBytes  prometheus.Counter
	transitions    *prometheus.CounterVec
	violations     *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	tenantFailures *prometheus.CounterVec
	jobSkips       *prometheus.CounterVec
}

// New registers every collector in a fresh registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		providerCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of processing provider calls by outcome",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"op", "result"}),
		uploadedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes accepted by upload sessions",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_transitions_total",
			Help:      "Video lifecycle transitions",
		}, []string{"from", "to"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "isolation_violations_total",
			Help:      "Refused cross-tenant or unscoped data accesses",
		}, []string{"table", "op"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by outcome",
		}, []string{"job", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of job runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"job"}),
		tenantFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_tenant_failures_total",
			Help:      "Per-tenant failures inside job runs",
		}, []string{"job"}),
		jobSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_skipped_total",
			Help:      "Job triggers skipped because a run was in progress",
		}, []string{"job"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request counts and latency labelled by chi route pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveProvider matches processing.WithObserver.
func (m *Metrics) ObserveProvider(op string, kind processing.Kind, d time.Duration) {
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	m.providerCalls.WithLabelValues(op, result).Observe(d.Seconds())
}

// ObserveAppend matches upload.WithAppendHook.
func (m *Metrics) ObserveAppend(n int64) {
	m.uploadedBytes.Add(float64(n))
}

// ObserveTransition matches video.WithTransitionHook.
func (m *Metrics) ObserveTransition(from, to video.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveViolation matches isolation.WithViolationHook.
func (m *Metrics) ObserveViolation(v *isolation.Violation) {
	m.violations.WithLabelValues(v.Table, v.Op).Inc()
}

// ObserveReport matches jobs.WithReportHook.
func (m *Metrics) ObserveReport(r jobs.Report) {
	m.jobRuns.WithLabelValues(r.Job, string(r.Outcome)).Inc()
	m.jobDuration.WithLabelValues(r.Job).Observe(r.Duration().Seconds())
	if n := len(r.Failures); n > 0 {
		m.tenantFailures.WithLabelValues(r.Job).Add(float64(n))
	}
}

// ObserveSkip matches jobs.WithSkipHook.
func (m *Metrics) ObserveSkip(job string) {
	m.jobSkips.WithLabelValues(job).Inc()
}
