// Package metrics exposes Prometheus instrumentation for imports, the
// content generator and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/copyloop/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "copyloop"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ImportRows     *prometheus.CounterVec
	ImportBatches  *prometheus.CounterVec
	GeneratorCalls *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates and registers all collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ImportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported CSV rows by outcome.",
		}, []string{"outcome"}),
		ImportBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_batches_total",
			Help:      "Finished import batches by terminal status.",
		}, []string{"status"}),
		GeneratorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_calls_total",
			Help:      "Content generator calls by operation and result.",
		}, []string{"op", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.ImportRows, m.ImportBatches, m.GeneratorCalls, m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ImportFinished implements performance.Recorder.
func (m *Metrics) ImportFinished(status domain.BatchStatus, accepted, failed int) {
	m.ImportBatches.WithLabelValues(string(status)).Inc()
	m.ImportRows.WithLabelValues("accepted").Add(float64(accepted))
	m.ImportRows.WithLabelValues("rejected").Add(float64(failed))
}

// GeneratorCall implements optimization.Recorder.
func (m *Metrics) GeneratorCall(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GeneratorCalls.WithLabelValues(op, result).Inc()
}

// ObserveHTTP records one served request. route should be the router
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
