// Package baseline compares a candidate strategy against fixed reference
// portfolios evaluated over the same horizon, caching each baseline's
// metrics so repeated candidates in one run never recompute them.
package baseline

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/rs/zerolog/log"

	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
)

// Well-known reference portfolio identifiers.
const (
	BuyHoldIndex   = "buy_hold_index"
	EqualWeightTop = "equal_weight_topn"
	RiskParity     = "risk_parity"
)

// Record holds the computed performance of one reference portfolio over
// one period.
type Record struct {
	ID          string              `json:"id"`
	Sharpe      float64             `json:"sharpe"`
	TotalReturn float64             `json:"total_return"`
	MaxDrawdown float64             `json:"max_drawdown"`
	Bounds      series.PeriodBounds `json:"bounds"`
	CacheKey    string              `json:"cache_key"`
}

// Simulator is the external collaborator that backtests a reference
// portfolio. Its cost dominates this component, which is why records are
// cached per (id, bounds) key.
type Simulator interface {
	SimulateBaseline(ctx context.Context, id string, bounds series.PeriodBounds) (Record, error)
}

// SimulatorFunc adapts a plain function to Simulator.
type SimulatorFunc func(ctx context.Context, id string, bounds series.PeriodBounds) (Record, error)

func (f SimulatorFunc) SimulateBaseline(ctx context.Context, id string, bounds series.PeriodBounds) (Record, error) {
	return f(ctx, id, bounds)
}

// Config holds the comparator parameters.
type Config struct {
	Baselines []string `yaml:"baselines"`
	MinAlpha  float64  `yaml:"min_alpha"`
}

// DefaultConfig compares against all three reference portfolios and
// requires half a unit of risk-adjusted excess performance.
func DefaultConfig() Config {
	return Config{
		Baselines: []string{BuyHoldIndex, EqualWeightTop, RiskParity},
		MinAlpha:  0.5,
	}
}

// Status reports one baseline's availability and metric within a result.
type Status struct {
	ID        string  `json:"id"`
	Sharpe    float64 `json:"sharpe,omitempty"`
	Available bool    `json:"available"`
	Error     string  `json:"error,omitempty"`
	Cached    bool    `json:"cached"`
}

// Result is the typed outcome of one baseline comparison.
type Result struct {
	validate.Summary
	BestAlpha    float64  `json:"best_alpha"`
	BestBaseline string   `json:"best_baseline,omitempty"`
	Baselines    []Status `json:"baselines"`
}

// Comparator evaluates the candidate against cached reference portfolios.
type Comparator struct {
	cfg   Config
	sim   Simulator
	cache Cache
}

// New creates a comparator. A nil cache falls back to an in-process memory
// cache scoped to the comparator's lifetime.
func New(cfg Config, sim Simulator, cache Cache) *Comparator {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Comparator{cfg: cfg, sim: sim, cache: cache}
}

// Compare checks that the candidate's risk-adjusted metric beats the best
// available baseline by more than MinAlpha. A baseline whose simulation
// fails is reported unavailable and excluded from the best-of comparison
// instead of failing the whole comparator.
func (c *Comparator) Compare(ctx context.Context, candidateMetric float64, bounds series.PeriodBounds) Result {
	res := Result{Baselines: make([]Status, 0, len(c.cfg.Baselines))}

	var best *Record
	for _, id := range c.cfg.Baselines {
		rec, cached, err := c.lookup(ctx, id, bounds)
		if err != nil {
			log.Warn().Err(err).Str("baseline", id).Stringer("bounds", bounds).
				Msg("Baseline simulation unavailable")
			res.Baselines = append(res.Baselines, Status{ID: id, Error: err.Error()})
			continue
		}

		res.Baselines = append(res.Baselines, Status{
			ID: id, Sharpe: rec.Sharpe, Available: true, Cached: cached,
		})
		if best == nil || rec.Sharpe > best.Sharpe {
			best = rec
		}
	}

	if best == nil {
		res.Summary = validate.Unavailable("no baseline could be simulated for this period")
		return res
	}

	res.BestBaseline = best.ID
	res.BestAlpha = candidateMetric - best.Sharpe

	if res.BestAlpha > c.cfg.MinAlpha {
		res.Summary = validate.Passed(candidateMetric,
			fmt.Sprintf("beats %s by %.3f (required %.2f)", best.ID, res.BestAlpha, c.cfg.MinAlpha))
	} else {
		res.Summary = validate.FailedWithMetric(candidateMetric,
			fmt.Sprintf("excess over %s is %.3f, required more than %.2f", best.ID, res.BestAlpha, c.cfg.MinAlpha))
	}
	return res
}

// lookup fetches a baseline record from the cache or computes and inserts
// it. Concurrent candidates may race to compute the same key; the write is
// idempotent so the race costs a redundant simulation, never a wrong value.
func (c *Comparator) lookup(ctx context.Context, id string, bounds series.PeriodBounds) (*Record, bool, error) {
	key := Key(id, bounds)
	if rec, ok := c.cache.Get(ctx, key); ok {
		return rec, true, nil
	}

	rec, err := c.sim.SimulateBaseline(ctx, id, bounds)
	if err != nil {
		return nil, false, &validate.UpstreamError{Op: "baseline " + id, Err: err}
	}
	rec.CacheKey = key
	c.cache.Set(ctx, key, &rec)
	return &rec, false, nil
}

// CacheStats exposes the underlying cache counters.
func (c *Comparator) CacheStats() CacheStats {
	return c.cache.Stats()
}

// Key derives the cache key for one (baseline, period) pair.
func Key(id string, bounds series.PeriodBounds) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", id, bounds.Start.Unix(), bounds.End.Unix())
	return fmt.Sprintf("%s:%016x", id, h.Sum64())
}
