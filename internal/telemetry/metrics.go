// Package telemetry provides the Prometheus metrics and OpenTelemetry spans
// shared by the scheduler (C4) and iteration controller (C5) — promoted
// from the teacher's hand-rolled ExecutorMetrics/ExecutorMetricsSnapshot
// atomics to real collectors, per SPEC_FULL.md's supplemented features.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the scheduler and controller touch. A zero
// Metrics (via NewMetrics) is safe to use standalone; Register attaches it
// to a caller-supplied registry (or the default one) for scraping.
type Metrics struct {
	ActionsLaunched  *prometheus.CounterVec
	ActionsRetried   prometheus.Counter
	ActionDuration   *prometheus.HistogramVec
	ActionsInFlight  prometheus.Gauge
	Iterations       prometheus.Counter
	Executions       *prometheus.CounterVec
}

// NewMetrics constructs an unregistered Metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		ActionsLaunched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "agentcore",
			Name:      "actions_total",
			Help:      "Actions dispatched by the DAG scheduler, by terminal status.",
		}, []string{"status"}),
		ActionsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "agentcore",
			Name:      "action_retries_total",
			Help:      "Retry attempts issued by the DAG scheduler.",
		}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cortex",
			Subsystem: "agentcore",
			Name:      "action_duration_seconds",
			Help:      "Per-action execution duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ActionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cortex",
			Subsystem: "agentcore",
			Name:      "actions_in_flight",
			Help:      "Actions currently running.",
		}),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "agentcore",
			Name:      "iterations_total",
			Help:      "Iterations started by the iteration controller.",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cortex",
			Subsystem: "agentcore",
			Name:      "executions_total",
			Help:      "Completed executions, by terminal outcome.",
		}, []string{"outcome"}),
	}
}

// Register attaches every collector to reg. Pass prometheus.DefaultRegisterer
// for the global registry, or a fresh *prometheus.Registry in tests to avoid
// cross-test collisions.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ActionsLaunched, m.ActionsRetried, m.ActionDuration,
		m.ActionsInFlight, m.Iterations, m.Executions,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
