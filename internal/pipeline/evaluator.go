package pipeline

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/veritrade/statval/internal/config"
	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
)

// SeriesEvaluator computes the period metric directly from a precomputed
// return series. It is the default when the backtest collaborator supplies
// the series instead of a live callback.
type SeriesEvaluator struct {
	rs     *series.ReturnSeries
	metric validate.MetricFunc
}

// NewSeriesEvaluator builds an evaluator over rs. A nil metric defaults to
// the annualized Sharpe ratio.
func NewSeriesEvaluator(rs *series.ReturnSeries, metric validate.MetricFunc) *SeriesEvaluator {
	if metric == nil {
		metric = series.SharpeRatio
	}
	return &SeriesEvaluator{rs: rs, metric: metric}
}

// EvaluatePeriod slices the series to bounds and applies the metric.
func (e *SeriesEvaluator) EvaluatePeriod(_ context.Context, bounds series.PeriodBounds) (float64, error) {
	sub := e.rs.Slice(bounds)
	if sub.Len() == 0 {
		return 0, fmt.Errorf("no observations in period %s", bounds)
	}
	return e.metric(sub.Returns()), nil
}

// GuardedEvaluator wraps the backtest-evaluation collaborator with a rate
// limiter and a circuit breaker. The callback may block for seconds per
// call and is the dominant wall-clock cost of a run; the breaker turns a
// flapping collaborator into fast "unavailable" verdicts instead of a
// stalled batch.
type GuardedEvaluator struct {
	inner   validate.PeriodEvaluator
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedEvaluator wraps inner according to the pipeline config.
func NewGuardedEvaluator(inner validate.PeriodEvaluator, cfg config.PipelineConfig) *GuardedEvaluator {
	failures := cfg.BreakerConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:    "backtest-evaluator",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}

	var limiter *rate.Limiter
	if cfg.EvaluationsPerSecond > 0 {
		burst := cfg.EvaluationBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.EvaluationsPerSecond), burst)
	}

	return &GuardedEvaluator{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: limiter,
	}
}

// EvaluatePeriod applies the rate limit, then runs the callback through the
// breaker. Every failure, including an open breaker, surfaces as an
// UpstreamError so validators report unavailable rather than fail.
func (g *GuardedEvaluator) EvaluatePeriod(ctx context.Context, bounds series.PeriodBounds) (float64, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return 0, &validate.UpstreamError{Op: "rate limit wait", Err: err}
		}
	}

	v, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.EvaluatePeriod(ctx, bounds)
	})
	if err != nil {
		return 0, &validate.UpstreamError{Op: fmt.Sprintf("evaluate %s", bounds), Err: err}
	}
	return v.(float64), nil
}

// BreakerState exposes the breaker state for diagnostics.
func (g *GuardedEvaluator) BreakerState() string {
	return g.breaker.State().String()
}
