// Package metrics exposes Prometheus collectors for the store and the
// registration endpoints.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "identity_registry"

// Metrics owns a private registry so that several instances can coexist in
// tests.
type Metrics struct {
	registry      *prometheus.Registry
	queryDuration *prometheus.HistogramVec
	registrations *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of SQL statements by verb and status.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"verb", "status"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration lookups by token kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	m.registry.MustRegister(
		m.queryDuration,
		m.registrations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordQuery implements db.MetricsCollector.
func (m *Metrics) RecordQuery(query string, d time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	m.queryDuration.WithLabelValues(verb(query), status).Observe(d.Seconds())
}

// RecordRegistration implements registry.Recorder.
func (m *Metrics) RecordRegistration(kind, outcome string) {
	m.registrations.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// verb keeps label cardinality bounded: only the leading SQL keyword is used.
func verb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "other"
	}
	switch v := strings.ToLower(fields[0]); v {
	case "select", "insert", "update", "delete", "begin", "commit", "rollback":
		return v
	}
	return "other"
}
