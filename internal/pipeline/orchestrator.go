// Package pipeline composes the five statistical validators into one
// orchestrated run per candidate strategy.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrade/statval/internal/config"
	"github.com/veritrade/statval/internal/domain/series"
	logx "github.com/veritrade/statval/internal/log"
	"github.com/veritrade/statval/internal/metrics"
	"github.com/veritrade/statval/internal/validate"
	"github.com/veritrade/statval/internal/validate/baseline"
	"github.com/veritrade/statval/internal/validate/bootstrap"
	"github.com/veritrade/statval/internal/validate/correction"
	"github.com/veritrade/statval/internal/validate/datasplit"
	"github.com/veritrade/statval/internal/validate/walkforward"
)

// Orchestrator runs all five validators for each candidate. Validators are
// mutually independent reads of the same return series; only the baseline
// cache is shared across candidates, and it is write-once per key.
type Orchestrator struct {
	cfg        config.Config
	cache      baseline.Cache
	comparator *baseline.Comparator
	split      *datasplit.Validator
	wf         *walkforward.Analyzer
	corrector  *correction.Corrector
	boot       *bootstrap.Engine
	metricFn   validate.MetricFunc
	reg        *metrics.Registry
	marketVol  float64
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches a Prometheus registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *Orchestrator) { o.reg = reg }
}

// WithBaselineCache substitutes the run-scoped baseline cache, e.g. a
// Redis-backed cache shared between workers.
func WithBaselineCache(c baseline.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithMarketVolatility fixes the annualized market volatility used to
// calibrate the bootstrap null distribution. Without it, each candidate's
// own realized volatility is used.
func WithMarketVolatility(vol float64) Option {
	return func(o *Orchestrator) { o.marketVol = vol }
}

// WithMetricFunc substitutes the risk-adjusted metric; the default is the
// annualized Sharpe ratio.
func WithMetricFunc(fn validate.MetricFunc) Option {
	return func(o *Orchestrator) { o.metricFn = fn }
}

// New wires an orchestrator from config plus the baseline-simulation
// collaborator.
func New(cfg config.Config, sim baseline.Simulator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		metricFn: series.SharpeRatio,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = baseline.NewMemoryCache()
	}

	o.comparator = baseline.New(cfg.Baseline, sim, o.cache)
	o.split = datasplit.New(cfg.DataSplit)
	o.wf = walkforward.New(cfg.WalkForward)
	o.corrector = correction.New(cfg.Correction)
	o.boot = bootstrap.New(cfg.Bootstrap)
	return o
}

// SplitBounds partitions the candidate's span 60/20/20 by observation
// count, chronologically ordered and non-overlapping. Callers with their
// own partition scheme evaluate datasplit directly.
func (o *Orchestrator) SplitBounds(rs *series.ReturnSeries) (train, val, test series.PeriodBounds) {
	n := rs.Len()
	trainEnd := n * 6 / 10
	valEnd := n * 8 / 10

	endOf := func(i int) time.Time {
		if i < n {
			return rs.DateAt(i)
		}
		return rs.DateAt(n - 1).AddDate(0, 0, 1)
	}

	train = series.PeriodBounds{Start: rs.DateAt(0), End: endOf(trainEnd)}
	val = series.PeriodBounds{Start: rs.DateAt(trainEnd), End: endOf(valEnd)}
	test = series.PeriodBounds{Start: rs.DateAt(valEnd), End: endOf(n)}
	return train, val, test
}

// ValidateCandidate runs the full validator set for one candidate.
// Statistical failures never short-circuit the remaining validators; only
// malformed inputs end the candidate early, and even those are reported,
// not raised.
func (o *Orchestrator) ValidateCandidate(ctx context.Context, cand Candidate) *Report {
	rep := &Report{
		RunID:       uuid.NewString(),
		CandidateID: cand.ID,
		Name:        cand.Name,
		GeneratedAt: time.Now().UTC(),
	}
	if rep.CandidateID == "" {
		rep.CandidateID = uuid.NewString()
	}

	if o.reg != nil {
		o.reg.CandidatesTotal.Inc()
		o.reg.ActiveValidations.Inc()
		defer o.reg.ActiveValidations.Dec()
	}

	if cand.Returns == nil || cand.Returns.Len() == 0 {
		rep.Error = "candidate has no return series"
		rep.finalize()
		return rep
	}

	inner := cand.Evaluator
	if inner == nil {
		inner = NewSeriesEvaluator(cand.Returns, o.metricFn)
	}
	eval := NewGuardedEvaluator(inner, o.cfg.Pipeline)

	returns := cand.Returns.Returns()
	pointMetric := o.metricFn(returns)
	marketVol := o.marketVol
	if marketVol == 0 {
		marketVol = series.AnnualizedVolatility(returns)
	}
	train, val, test := o.SplitBounds(cand.Returns)

	var mu sync.Mutex
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if rep.Error == "" {
			rep.Error = err.Error()
		}
	}

	steps := []struct {
		name string
		run  func() validate.Status
	}{
		{"data_split", func() validate.Status {
			res, err := o.split.Evaluate(ctx, cand.Returns, eval, train, val, test)
			if err != nil {
				fail(fmt.Errorf("data_split: %w", err))
				return validate.StatusUnavailable
			}
			rep.DataSplit = &res
			return res.Status
		}},
		{"walk_forward", func() validate.Status {
			res, err := o.wf.Evaluate(ctx, cand.Returns, eval)
			if err != nil {
				fail(fmt.Errorf("walk_forward: %w", err))
				return validate.StatusUnavailable
			}
			rep.WalkForward = &res
			return res.Status
		}},
		{"bonferroni", func() validate.Status {
			res := o.corrector.Evaluate(pointMetric, cand.Returns.Len(), marketVol, o.metricFn)
			rep.Bonferroni = &res
			return res.Status
		}},
		{"bootstrap", func() validate.Status {
			res, err := o.boot.Run(returns, o.metricFn)
			if err != nil {
				fail(fmt.Errorf("bootstrap: %w", err))
				return validate.StatusUnavailable
			}
			rep.Bootstrap = &res
			return res.Status
		}},
		{"baseline", func() validate.Status {
			before := o.comparator.CacheStats()
			res := o.comparator.Compare(ctx, pointMetric, cand.Returns.Bounds())
			rep.Baseline = &res
			o.recordCacheDelta(before, o.comparator.CacheStats())
			return res.Status
		}},
	}

	if o.cfg.Pipeline.Parallel {
		var wg sync.WaitGroup
		for _, step := range steps {
			wg.Add(1)
			go func(name string, run func() validate.Status) {
				defer wg.Done()
				o.runStep(name, run)
			}(step.name, step.run)
		}
		wg.Wait()
	} else {
		for _, step := range steps {
			o.runStep(step.name, step.run)
		}
	}

	rep.finalize()

	log.Info().
		Str("run_id", rep.RunID).
		Str("candidate", rep.CandidateID).
		Bool("pass", rep.Pass).
		Float64("metric", pointMetric).
		Msg("Candidate validation complete")

	return rep
}

// ValidateBatch validates every candidate, isolating failures so one
// candidate's data shortage never aborts the rest.
func (o *Orchestrator) ValidateBatch(ctx context.Context, cands []Candidate) []*Report {
	progress := logx.NewBatchProgress("validation", len(cands), 10*time.Second)
	reports := make([]*Report, 0, len(cands))

	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("remaining", len(cands)-len(reports)).
				Msg("Validation batch canceled")
			break
		}

		rep := o.ValidateCandidate(ctx, cand)
		reports = append(reports, rep)
		progress.Step(rep.Pass)
	}

	return reports
}

// runStep executes one validator and records its duration and outcome.
func (o *Orchestrator) runStep(name string, run func() validate.Status) {
	start := time.Now()
	status := run()
	if o.reg != nil {
		o.reg.ObserveValidator(name, status, time.Since(start))
	}
}

func (o *Orchestrator) recordCacheDelta(before, after baseline.CacheStats) {
	if o.reg == nil {
		return
	}
	if d := after.Hits - before.Hits; d > 0 {
		o.reg.BaselineCacheHits.Add(float64(d))
	}
	if d := after.Misses - before.Misses; d > 0 {
		o.reg.BaselineCacheMisses.Add(float64(d))
	}
}
