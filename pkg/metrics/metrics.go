// Package metrics exposes the service's Prometheus metrics. Every method is
// safe on a nil *Registry so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vkinsights"

// Registry holds the service collectors on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	validateTotal *prometheus.CounterVec
	dataErrors    *prometheus.CounterVec
	commandTotal  *prometheus.CounterVec
	connections   prometheus.Gauge
	httpDuration  *prometheus.HistogramVec
}

// New creates a Registry with all collectors registered.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "API requests by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "request_duration_seconds",
			Help:      "Latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		validateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validate",
			Name:      "payloads_total",
			Help:      "Validated payloads by result.",
		}, []string{"result"}),
		dataErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "data_errors_total",
			Help:      "Records whose fields could not be normalized.",
		}, []string{"pass"}),
		commandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "executed_total",
			Help:      "Commands executed by name and status.",
		}, []string{"command", "status"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of admin HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	r.registry.MustRegister(
		r.fetchTotal, r.fetchDuration, r.validateTotal,
		r.dataErrors, r.commandTotal, r.connections, r.httpDuration,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one API request.
func (r *Registry) ObserveFetch(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.fetchTotal.WithLabelValues(outcome).Inc()
	r.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AddValidated records n payloads with the given result ("ok", "api_error",
// "skipped").
func (r *Registry) AddValidated(result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.validateTotal.WithLabelValues(result).Add(float64(n))
}

// IncDataError records a record a normalization pass could not handle.
func (r *Registry) IncDataError(pass string) {
	if r == nil {
		return
	}
	r.dataErrors.WithLabelValues(pass).Inc()
}

// IncCommand records an executed command.
func (r *Registry) IncCommand(command, status string) {
	if r == nil {
		return
	}
	r.commandTotal.WithLabelValues(command, status).Inc()
}

// ObserveHTTP records one admin HTTP request.
func (r *Registry) ObserveHTTP(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// ConnOpened and ConnClosed track live server connections.
func (r *Registry) ConnOpened() {
	if r != nil {
		r.connections.Inc()
	}
}

func (r *Registry) ConnClosed() {
	if r != nil {
		r.connections.Dec()
	}
}
