// Package metrics exposes Prometheus counters for long-running migration
// processes such as `fdml migrate watch`.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fdml"

// Outcome labels.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeFailed  = "failed"
)

// Recorder owns a private registry so several recorders can coexist in tests.
type Recorder struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	migrations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pending    prometheus.Gauge
	lastRun    prometheus.Gauge
}

// New registers the migration metrics plus the Go and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,

		// Labels: action (apply, rollback), outcome (applied, noop, failed)
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "runs_total",
			Help:      "Migration batches attempted",
		}, []string{"action", "outcome"}),

		// Labels: action
		migrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "migrations_total",
			Help:      "Migrations applied or rolled back",
		}, []string{"action"}),

		// Labels: action, kind (error taxonomy name)
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "failures_total",
			Help:      "Failed migration batches by error kind",
		}, []string{"action", "kind"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "run_duration_seconds",
			Help:      "Migration batch latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"action"}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "pending",
			Help:      "Migrations defined but not yet applied",
		}),

		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed batch",
		}),
	}
}

// ObserveRun records one batch. kind is the error taxonomy name of a failure.
func (r *Recorder) ObserveRun(action string, count int, elapsed time.Duration, kind string, failed bool) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(action).Observe(elapsed.Seconds())
	switch {
	case failed:
		if kind == "" {
			kind = "unknown"
		}
		r.runs.WithLabelValues(action, OutcomeFailed).Inc()
		r.failures.WithLabelValues(action, kind).Inc()
		return
	case count == 0:
		r.runs.WithLabelValues(action, OutcomeNoop).Inc()
	default:
		r.runs.WithLabelValues(action, OutcomeApplied).Inc()
		r.migrations.WithLabelValues(action).Add(float64(count))
	}
	r.lastRun.SetToCurrentTime()
}

// SetPending updates the pending gauge.
func (r *Recorder) SetPending(n int) {
	if r == nil {
		return
	}
	r.pending.Set(float64(n))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
