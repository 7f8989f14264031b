// Package metrics exposes pipeline counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeComplete        = "complete"
	OutcomeReadError       = "read_error"
	OutcomeAnalysisError   = "analysis_error"
	OutcomeGenerationError = "generation_error"
)

// Pipeline stages.
const (
	StageRead     = "read"
	StageAnalysis = "analysis"
	StageDiagram  = "diagram"
	StagePersist  = "persist"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	registry            *prometheus.Registry
	runs                *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	persistenceFailures *prometheus.CounterVec
	runsInFlight        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electroschematic_runs_total",
				Help: "Pipeline runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "electroschematic_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"stage"},
		),
		persistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electroschematic_persistence_failures_total",
				Help: "History store operations that failed",
			},
			[]string{"op"},
		),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "electroschematic_runs_in_flight",
			Help: "Pipeline runs currently executing",
		}),
	}
	m.registry.MustRegister(
		m.runs, m.stageDuration, m.persistenceFailures, m.runsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunStarted() {
	m.runsInFlight.Inc()
}

func (m *Metrics) RunFinished(outcome string) {
	m.runsInFlight.Dec()
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) PersistenceFailed(op string) {
	m.persistenceFailures.WithLabelValues(op).Inc()
}
