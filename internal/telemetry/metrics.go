package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scheduler's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	rounds        prometheus.Counter
	roundDuration prometheus.Histogram
	tasks         *prometheus.CounterVec
	pending       prometheus.Gauge
	attempts      prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lyricflow_rounds_total",
			Help: "Scheduler rounds completed.",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lyricflow_round_duration_seconds",
			Help:    "Wall time from dispatch to barrier for each round.",
			Buckets: prometheus.DefBuckets,
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lyricflow_task_results_total",
			Help: "Task results by outcome.",
		}, []string{"outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lyricflow_pending_tasks",
			Help: "Tasks still waiting for prerequisites.",
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lyricflow_task_attempts_total",
			Help: "Task body invocations, including retries.",
		}),
	}

	m.registry.MustRegister(m.rounds, m.roundDuration, m.tasks, m.pending, m.attempts)
	return m
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RoundCompleted records a finished round.
func (m *Metrics) RoundCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.rounds.Inc()
	m.roundDuration.Observe(d.Seconds())
}

// TaskResult counts one task outcome ("finished", "run-again", "failed", "skipped").
func (m *Metrics) TaskResult(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(outcome).Inc()
	m.attempts.Add(float64(attempts))
}

// SetPending records the size of the pending pool.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
