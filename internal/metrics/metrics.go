// Package metrics counts engine builds, auth outcomes, connection failures
// and queries in a private Prometheus registry. A CLI run is short-lived, so
// the registry is written out as a node_exporter textfile instead of being
// scraped.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pdmq"

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	engineBuilds     prometheus.Counter
	authOutcomes     *prometheus.CounterVec
	connectionErrors *prometheus.CounterVec
	queries          *prometheus.CounterVec
}

// New creates the counters and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		engineBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_builds_total",
			Help:      "Connection engines built.",
		}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Token acquisitions by terminal state.",
		}, []string{"state"}),
		connectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Classified connection failures by kind.",
		}, []string{"kind"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Statements executed by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(m.engineBuilds, m.authOutcomes, m.connectionErrors, m.queries)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EngineBuilt counts one engine build.
func (m *Metrics) EngineBuilt() {
	if m == nil {
		return
	}

	m.engineBuilds.Inc()
}

// AuthOutcome counts one token acquisition ending in state.
func (m *Metrics) AuthOutcome(state string) {
	if m == nil {
		return
	}

	m.authOutcomes.WithLabelValues(state).Inc()
}

// ConnectionError counts one classified connection failure.
func (m *Metrics) ConnectionError(kind string) {
	if m == nil {
		return
	}

	m.connectionErrors.WithLabelValues(kind).Inc()
}

// Query counts one executed statement.
func (m *Metrics) Query(status string) {
	if m == nil {
		return
	}

	m.queries.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}

	return nil
}
