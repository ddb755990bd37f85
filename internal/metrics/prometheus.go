package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nimbusrun/fnrun/internal/domain"
)

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// PrometheusMetrics wraps the process's Prometheus registry and the
// collectors Collector.observe feeds on every invocation.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	coldStartsTotal    *prometheus.CounterVec
	warmStartsTotal    *prometheus.CounterVec
	startupDuration    *prometheus.HistogramVec
}

// NewPrometheusMetrics registers a fresh set of collectors under namespace.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of function invocations.",
		}, []string{"function_id", "backend", "status"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_ms",
			Help:      "Handler duration as reported by the Envelope, in milliseconds.",
			Buckets:   defaultBuckets,
		}, []string{"function_id", "backend"}),
		coldStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cold_starts_total",
			Help:      "Total number of cold-start invocations.",
		}, []string{"function_id", "backend"}),
		warmStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_starts_total",
			Help:      "Total number of warm-start invocations.",
		}, []string{"function_id", "backend"}),
		startupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "startup_duration_ms",
			Help:      "Sandbox-only: wall time spent outside the handler.",
			Buckets:   defaultBuckets,
		}, []string{"function_id"}),
	}

	registry.MustRegister(
		pm.invocationsTotal,
		pm.invocationDuration,
		pm.coldStartsTotal,
		pm.warmStartsTotal,
		pm.startupDuration,
	)
	return pm
}

// observe feeds one MetricRecord into the registered collectors. Called
// from Collector.Collect, so it must stay allocation-light and lock-free
// beyond what the prometheus client itself does internally.
func (pm *PrometheusMetrics) observe(rec domain.MetricRecord) {
	status := "success"
	if rec.Error {
		status = "error"
	}
	pm.invocationsTotal.WithLabelValues(rec.FunctionID, string(rec.Backend), status).Inc()
	pm.invocationDuration.WithLabelValues(rec.FunctionID, string(rec.Backend)).Observe(float64(rec.DurationMs))
	if rec.WarmStart {
		pm.warmStartsTotal.WithLabelValues(rec.FunctionID, string(rec.Backend)).Inc()
	} else {
		pm.coldStartsTotal.WithLabelValues(rec.FunctionID, string(rec.Backend)).Inc()
	}
	if rec.StartupTimeMs > 0 {
		pm.startupDuration.WithLabelValues(rec.FunctionID).Observe(float64(rec.StartupTimeMs))
	}
}

// Handler returns the HTTP handler that serves this registry's exposition
// format for scraping.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}
