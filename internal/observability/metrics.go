package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Metrics holds the Prometheus collectors for the service on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	buildInfo  *prometheus.GaugeVec
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	operations *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helpdesk_build_info",
				Help: "Build information for the helpdesk service",
			},
			[]string{"version"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helpdesk_http_request_duration_seconds",
				Help:    "HTTP request latency by route and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpdesk_collaboration_operations_total",
				Help: "Collaboration operations by name and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.buildInfo,
		m.requests,
		m.latency,
		m.operations,
	)
	return m
}

// RecordBuildInfo sets the build info gauge.
func (m *Metrics) RecordBuildInfo(version string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version).Set(1)
}

// RecordRequest counts a finished HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordOperation counts a collaboration operation. The outcome is "ok" or
// the lower-cased error code.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome maps an operation error to a metric label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(errorutil.ToDomainError(err).Code)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
