// Package metrics provides Prometheus metrics for the dashboard service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns a registry and the service's collectors.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	cacheRequests *prometheus.CounterVec
	cacheEpoch    prometheus.Gauge
	rowsDropped   *prometheus.CounterVec
	renders       *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithGoCollectors adds the Go runtime and process collectors.
func WithGoCollectors() Option {
	return func(m *Manager) {
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
}

// NewManager creates a Manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fipezap",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.fetches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "workbook_fetches_total",
		Help:      "Workbook fetch attempts by result.",
	}, []string{"result"})
	m.fetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "workbook_fetch_duration_seconds",
		Help:      "Duration of workbook fetches including retries.",
		Buckets:   m.histogramBuckets,
	})
	m.cacheRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_requests_total",
		Help:      "Workbook cache lookups by outcome.",
	}, []string{"outcome"})
	m.cacheEpoch = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "cache_epoch",
		Help:      "Current workbook cache epoch.",
	})
	m.rowsDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rows_dropped_total",
		Help:      "Rows removed during extraction because their date did not parse, counted once per loaded sheet.",
	}, []string{"section"})
	m.renders = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "section_renders_total",
		Help:      "Section renders by outcome (chart, warning, error).",
	}, []string{"section", "outcome"})
	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordFetch records one workbook fetch outcome.
func (m *Manager) RecordFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

// RecordCache records a cache hit or miss.
func (m *Manager) RecordCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheRequests.WithLabelValues(outcome).Inc()
}

// SetCacheEpoch publishes the cache epoch.
func (m *Manager) SetCacheEpoch(epoch uint64) {
	if m == nil {
		return
	}
	m.cacheEpoch.Set(float64(epoch))
}

// RecordRowsDropped adds n dropped rows for a section.
func (m *Manager) RecordRowsDropped(section string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDropped.WithLabelValues(section).Add(float64(n))
}

// RecordRender records how a section ended up on screen.
func (m *Manager) RecordRender(section, outcome string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(section, outcome).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
