// Package metrics defines the Prometheus collectors for the solar pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solar"

// Outcome labels for PipelineRuns.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Result labels for CacheLookups.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics holds the Prometheus counters, histograms and gauges for the solar pipeline.
type Metrics struct {
	PipelineRuns     *prometheus.CounterVec   // labels: operation, outcome={success,<error kind>}
	CacheLookups     *prometheus.CounterVec   // labels: result={hit,miss}
	CacheEntries     prometheus.Gauge         // current lookup cache size
	UpstreamDuration *prometheus.HistogramVec // labels: provider
	CircuitOpen      *prometheus.GaugeVec     // labels: service; 1 while open
	InstallersLoaded prometheus.Gauge
	LeadsCreated     *prometheus.CounterVec // labels: backend, outcome={created,duplicate,error}
}

// New creates all metrics and registers them with the default Prometheus registry.
func New() *Metrics {
	m := build()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.CacheLookups,
		m.CacheEntries,
		m.UpstreamDuration,
		m.CircuitOpen,
		m.InstallersLoaded,
		m.LeadsCreated,
	)
	return m
}

// NewForTesting creates unregistered Metrics so tests can build as many
// instances as they need without "already registered" panics.
func NewForTesting() *Metrics {
	return build()
}

func build() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline invocations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Coordinate lookup cache reads by result.",
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of best-surface results held in the lookup cache.",
		}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of calls to geocoding and rooftop dataset providers.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		CircuitOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker for a service is open, 0 otherwise.",
		}, []string{"service"}),
		InstallersLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "installers_loaded",
			Help:      "Number of installer records in the loaded dataset.",
		}),
		LeadsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_created_total",
			Help:      "Lead capture attempts by backend and outcome.",
		}, []string{"backend", "outcome"}),
	}
}

// ObserveUpstream records the latency of a provider call started at start.
// Safe to call on a nil receiver.
func (m *Metrics) ObserveUpstream(provider string, start time.Time) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// RecordRun counts one pipeline invocation. Safe to call on a nil receiver.
func (m *Metrics) RecordRun(operation, outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(operation, outcome).Inc()
}

// SetCircuitOpen tracks breaker state for a service. Safe to call on a nil receiver.
func (m *Metrics) SetCircuitOpen(service string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(service).Set(v)
}
