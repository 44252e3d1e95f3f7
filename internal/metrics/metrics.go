// Package metrics exposes Prometheus instrumentation for the validation
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritrade/statval/internal/validate"
)

// Registry holds all Prometheus metrics for statval.
type Registry struct {
	// Per-validator run durations, labeled by validator and outcome status
	ValidatorDuration *prometheus.HistogramVec

	// Validator outcome counts
	ValidatorOutcomes *prometheus.CounterVec

	// Collaborator failures surfaced as unavailable results
	UpstreamFailures prometheus.Counter

	// Baseline cache performance
	BaselineCacheHits   prometheus.Counter
	BaselineCacheMisses prometheus.Counter

	// Batch progress
	ActiveValidations prometheus.Gauge
	CandidatesTotal   prometheus.Counter
}

// NewRegistry creates the statval metric set. Call Register to attach it
// to a Prometheus registerer.
func NewRegistry() *Registry {
	return &Registry{
		ValidatorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statval_validator_duration_seconds",
				Help:    "Duration of each validator run in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"validator", "status"},
		),
		ValidatorOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statval_validator_outcomes_total",
				Help: "Validator outcomes by validator and status",
			},
			[]string{"validator", "status"},
		),
		UpstreamFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "statval_upstream_failures_total",
				Help: "Backtest-evaluation collaborator failures",
			},
		),
		BaselineCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "statval_baseline_cache_hits_total",
				Help: "Baseline record cache hits",
			},
		),
		BaselineCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "statval_baseline_cache_misses_total",
				Help: "Baseline record cache misses",
			},
		),
		ActiveValidations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "statval_active_validations",
				Help: "Candidates currently being validated",
			},
		),
		CandidatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "statval_candidates_total",
				Help: "Total candidates submitted for validation",
			},
		),
	}
}

// Register attaches every metric to the given registerer.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.ValidatorDuration,
		r.ValidatorOutcomes,
		r.UpstreamFailures,
		r.BaselineCacheHits,
		r.BaselineCacheMisses,
		r.ActiveValidations,
		r.CandidatesTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveValidator records one validator run.
func (r *Registry) ObserveValidator(name string, status validate.Status, elapsed time.Duration) {
	r.ValidatorDuration.WithLabelValues(name, string(status)).Observe(elapsed.Seconds())
	r.ValidatorOutcomes.WithLabelValues(name, string(status)).Inc()
	if status == validate.StatusUnavailable {
		r.UpstreamFailures.Inc()
	}
}
