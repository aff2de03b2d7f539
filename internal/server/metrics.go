package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/ercanvas/pkg/observability"
)

const namespace = "ercanvas"

// Metrics collects prometheus series for the server. It implements every
// observability hook interface; [Metrics.Install] registers it globally.
type Metrics struct {
	registry *prometheus.Registry

	mutations     *prometheus.CounterVec
	entities      prometheus.Gauge
	relationships prometheus.Gauge

	tutorRequests *prometheus.CounterVec
	tutorDuration *prometheus.HistogramVec
	tutorInFlight prometheus.Gauge

	renders     *prometheus.CounterVec
	renderBytes *prometheus.HistogramVec

	cacheEvents *prometheus.CounterVec

	storageOps      *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "diagram", Name: "mutations_total",
			Help: "Committed diagram mutations by operation.",
		}, []string{"op"}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "diagram", Name: "entities",
			Help: "Entity count after the most recent mutation.",
		}),
		relationships: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "diagram", Name: "relationships",
			Help: "Relationship count after the most recent mutation.",
		}),
		tutorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tutor", Name: "requests_total",
			Help: "Text-service requests by operation and result.",
		}, []string{"op", "result"}),
		tutorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tutor", Name: "request_duration_seconds",
			Help:    "Text-service request latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"op"}),
		tutorInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tutor", Name: "in_flight",
			Help: "Text-service requests currently running.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "export", Name: "renders_total",
			Help: "Exports by format and result.",
		}, []string{"format", "result"}),
		renderBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "export", Name: "bytes",
			Help:    "Size of rendered exports.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "events_total",
			Help: "Cache hits, misses and sets by key type.",
		}, []string{"key_type", "event"}),
		storageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "operations_total",
			Help: "Workspace loads and saves by backend and result.",
		}, []string{"backend", "op", "result"}),
		storageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "storage", Name: "operation_duration_seconds",
			Help:    "Workspace load and save latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.mutations, m.entities, m.relationships,
		m.tutorRequests, m.tutorDuration, m.tutorInFlight,
		m.renders, m.renderBytes,
		m.cacheEvents,
		m.storageOps, m.storageDuration,
		m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Install registers m as the process-wide observability hooks.
func (m *Metrics) Install() {
	observability.SetDiagramHooks(m)
	observability.SetTutorHooks(m)
	observability.SetRenderHooks(m)
	observability.SetCacheHooks(m)
	observability.SetStorageHooks(m)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// =============================================================================
// Hooks
// =============================================================================

func (m *Metrics) OnMutation(op string, entities, relationships int) {
	m.mutations.WithLabelValues(op).Inc()
	m.entities.Set(float64(entities))
	m.relationships.Set(float64(relationships))
}

func (m *Metrics) OnRequestStart(ctx context.Context, op string) {
	m.tutorInFlight.Inc()
}

func (m *Metrics) OnRequestComplete(ctx context.Context, op string, d time.Duration, err error) {
	m.tutorInFlight.Dec()
	m.tutorRequests.WithLabelValues(op, result(err)).Inc()
	m.tutorDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) OnRenderComplete(ctx context.Context, format string, bytes int, d time.Duration, err error) {
	m.renders.WithLabelValues(format, result(err)).Inc()
	if err == nil {
		m.renderBytes.WithLabelValues(format).Observe(float64(bytes))
	}
}

func (m *Metrics) OnCacheHit(ctx context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(ctx context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(ctx context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnSave(ctx context.Context, backend string, d time.Duration, err error) {
	m.storageOps.WithLabelValues(backend, "save", result(err)).Inc()
	m.storageDuration.WithLabelValues(backend, "save").Observe(d.Seconds())
}

func (m *Metrics) OnLoad(ctx context.Context, backend string, d time.Duration, err error) {
	m.storageOps.WithLabelValues(backend, "load", result(err)).Inc()
	m.storageDuration.WithLabelValues(backend, "load").Observe(d.Seconds())
}

// instrument records request counts and latency by chi route pattern, so
// that entity ids do not explode label cardinality.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

var (
	_ observability.DiagramHooks = (*Metrics)(nil)
	_ observability.TutorHooks   = (*Metrics)(nil)
	_ observability.RenderHooks  = (*Metrics)(nil)
	_ observability.CacheHooks   = (*Metrics)(nil)
	_ observability.StorageHooks = (*Metrics)(nil)
)
