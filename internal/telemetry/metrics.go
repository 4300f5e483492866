package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cip_designer"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	designs             *prometheus.CounterVec
	enhanceFailures     *prometheus.CounterVec
	unpricedLines       prometheus.Counter
	persistFailures     prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		designs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "design",
			Name:      "calculations_total",
			Help:      "Design calculations by enhancement outcome",
		}, []string{"enhancement"}),
		enhanceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "design",
			Name:      "enhancement_failures_total",
			Help:      "LLM enhancement failures by class",
		}, []string{"class"}),
		unpricedLines: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "unpriced_lines_total",
			Help:      "BOM lines with no confident catalog match",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Design runs that could not be stored",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
	}
}

// Nil receivers are allowed on every recorder so callers can run without
// metrics.

func (m *Metrics) DesignCalculated(enhancement string) {
	if m == nil {
		return
	}
	m.designs.WithLabelValues(enhancement).Inc()
}

func (m *Metrics) EnhancementFailed(class string) {
	if m == nil {
		return
	}
	m.enhanceFailures.WithLabelValues(class).Inc()
}

func (m *Metrics) UnpricedLines(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unpricedLines.Add(float64(n))
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
