// Package correction computes the significance bar a strategy metric must
// clear given how many candidates are being screened, controlling the
// family-wise error rate with a Bonferroni adjustment.
package correction

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/veritrade/statval/internal/validate"
	"github.com/veritrade/statval/internal/validate/bootstrap"
)

// Mode selects which threshold drives the significance decision.
type Mode string

const (
	// ModeParametric assumes the metric is ~normal under the null with
	// variance 1/T.
	ModeParametric Mode = "parametric"
	// ModeBootstrap derives the threshold empirically from block-resampled
	// null returns; preferred for heavy-tailed or autocorrelated markets.
	ModeBootstrap Mode = "bootstrap"
)

// Config holds the family-wise error parameters.
type Config struct {
	Alpha             float64 `yaml:"alpha"`
	NumStrategies     int     `yaml:"num_strategies"`
	ConservativeFloor float64 `yaml:"conservative_floor"`
	Mode              Mode    `yaml:"mode"`
	Iterations        int     `yaml:"iterations"`
	BlockSize         int     `yaml:"block_size"`
	Seed              int64   `yaml:"seed"`
}

// DefaultConfig returns a 5% family-wise error target for a single
// strategy under the parametric threshold.
func DefaultConfig() Config {
	return Config{
		Alpha:             0.05,
		NumStrategies:     1,
		ConservativeFloor: 0.5,
		Mode:              ModeParametric,
		Iterations:        1000,
		BlockSize:         21,
	}
}

// Context records the derived significance bar alongside both thresholds
// so a caller can see how far the normal approximation diverges from the
// empirical one. Large divergence is itself a diagnostic signal.
type Context struct {
	NumStrategies       int     `json:"n_strategies"`
	Alpha               float64 `json:"alpha"`
	AdjustedAlpha       float64 `json:"adjusted_alpha"`
	ParametricThreshold float64 `json:"parametric_threshold"`
	BootstrapThreshold  float64 `json:"bootstrap_threshold,omitempty"`
	Threshold           float64 `json:"threshold"`
	Floor               float64 `json:"floor"`
}

// IsSignificant reports whether a metric clears the corrected bar.
func (c Context) IsSignificant(metric float64) bool {
	bar := c.Threshold
	if c.Floor > bar {
		bar = c.Floor
	}
	return metric > bar
}

// Result is the typed outcome used by the validation pipeline.
type Result struct {
	validate.Summary
	Context
	Significant bool `json:"significant"`
}

// Corrector derives Bonferroni-adjusted significance thresholds.
type Corrector struct {
	cfg Config
}

// New creates a corrector.
func New(cfg Config) *Corrector {
	return &Corrector{cfg: cfg}
}

// AdjustedAlpha is the per-test alpha: family alpha divided by the number
// of candidate strategies screened. Exact for all N >= 1.
func (c *Corrector) AdjustedAlpha() float64 {
	n := c.cfg.NumStrategies
	if n < 1 {
		n = 1
	}
	return c.cfg.Alpha / float64(n)
}

// ParametricThreshold assumes the metric is approximately N(0, 1/T) under
// the null: z(1 - adjusted/2) / sqrt(T), floored so a huge T cannot push
// the bar absurdly low.
func (c *Corrector) ParametricThreshold(numPeriods int) float64 {
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - c.AdjustedAlpha()/2)
	thr := z / math.Sqrt(float64(numPeriods))
	if thr < c.cfg.ConservativeFloor {
		thr = c.cfg.ConservativeFloor
	}
	return thr
}

// BootstrapThreshold simulates zero-mean null returns at the market's
// realized volatility (annualized), block-resamples them with the same
// mechanism as the CI engine, and takes the (1 - adjusted alpha) percentile
// of the metric draws.
func (c *Corrector) BootstrapThreshold(marketVol float64, numPeriods int, metric validate.MetricFunc) (float64, error) {
	if marketVol <= 0 {
		return 0, fmt.Errorf("market volatility must be positive, got %.4f", marketVol)
	}
	if numPeriods <= 0 {
		return 0, fmt.Errorf("number of periods must be positive, got %d", numPeriods)
	}

	rng := c.newRNG()
	dailySigma := marketVol / math.Sqrt(252)

	null := make([]float64, numPeriods)
	for i := range null {
		null[i] = rng.NormFloat64() * dailySigma
	}

	draws := make([]float64, 0, c.cfg.Iterations)
	for i := 0; i < c.cfg.Iterations; i++ {
		m := metric(bootstrap.ResampleBlocks(rng, null, c.cfg.BlockSize))
		if !math.IsNaN(m) && !math.IsInf(m, 0) {
			draws = append(draws, m)
		}
	}
	if len(draws) == 0 {
		return 0, fmt.Errorf("no finite metric draws from %d null resamples", c.cfg.Iterations)
	}

	sort.Float64s(draws)
	return stat.Quantile(1-c.AdjustedAlpha(), stat.Empirical, draws, nil), nil
}

// Evaluate derives the significance context for the given sample size and
// classifies the candidate metric against it. The bootstrap threshold is
// attempted whenever a metric function and market volatility are supplied;
// a failure there falls back to the parametric bar rather than aborting.
func (c *Corrector) Evaluate(metricValue float64, numPeriods int, marketVol float64, metricFn validate.MetricFunc) Result {
	if numPeriods <= 0 {
		return Result{Summary: validate.Failed(fmt.Sprintf("%s: no return periods", validate.ErrInsufficientData))}
	}

	cctx := Context{
		NumStrategies: max(c.cfg.NumStrategies, 1),
		Alpha:         c.cfg.Alpha,
		AdjustedAlpha: c.AdjustedAlpha(),
		Floor:         c.cfg.ConservativeFloor,
	}
	cctx.ParametricThreshold = c.ParametricThreshold(numPeriods)
	cctx.Threshold = cctx.ParametricThreshold

	if c.cfg.Mode == ModeBootstrap && metricFn != nil {
		bt, err := c.BootstrapThreshold(marketVol, numPeriods, metricFn)
		if err != nil {
			log.Warn().Err(err).Msg("Bootstrap threshold unavailable, using parametric bar")
		} else {
			cctx.BootstrapThreshold = bt
			cctx.Threshold = bt
		}
	}

	res := Result{Context: cctx, Significant: cctx.IsSignificant(metricValue)}
	if res.Significant {
		res.Summary = validate.Passed(metricValue,
			fmt.Sprintf("metric %.3f clears corrected threshold %.3f (adjusted alpha %.5f)",
				metricValue, cctx.Threshold, cctx.AdjustedAlpha))
	} else {
		res.Summary = validate.FailedWithMetric(metricValue,
			fmt.Sprintf("metric %.3f below corrected threshold %.3f (adjusted alpha %.5f, %d candidates)",
				metricValue, math.Max(cctx.Threshold, cctx.Floor), cctx.AdjustedAlpha, cctx.NumStrategies))
	}
	return res
}

func (c *Corrector) newRNG() *rand.Rand {
	seed := c.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
