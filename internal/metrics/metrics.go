// Package metrics holds the Prometheus collectors for keeval and a Journal
// decorator that records append and consolidation latency.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keeval/keeval/internal/domain"
)

const namespace = "keeval"

// Metrics owns a registry so that several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	journalOps      *prometheus.CounterVec
	journalDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		journalOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "journal",
				Name:      "operations_total",
				Help:      "Counter of journal operations.",
			}, []string{"op", "result"}),
		journalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "journal",
				Name:      "operation_duration_seconds",
				Help:      "Bucketed histogram of journal operation time (s).",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
			}, []string{"op"}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Counter of HTTP requests.",
			}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Bucketed histogram of HTTP request handling time (s).",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		m.journalOps,
		m.journalDuration,
		m.requests,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) observeJournal(op string, start time.Time, err error) {
	m.journalDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.journalOps.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrCorruptRecord):
		return "corrupt"
	case errors.Is(err, domain.ErrStorageIO):
		return "io_error"
	default:
		return "error"
	}
}
