// Package bootstrap estimates a metric's sampling distribution with a
// block bootstrap, preserving the autocorrelation structure that a naive
// i.i.d. resample would destroy.
package bootstrap

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/veritrade/statval/internal/validate"
)

// Config holds resampling parameters. A zero Seed draws a time-based seed;
// tests set it explicitly for reproducibility.
type Config struct {
	Iterations        int     `yaml:"iterations"`
	BlockSize         int     `yaml:"block_size"`
	ConfidenceLevel   float64 `yaml:"confidence_level"`
	MinObservations   int     `yaml:"min_observations"`
	MaxFailureRate    float64 `yaml:"max_failure_rate"`
	MinPracticalLower float64 `yaml:"min_practical_lower"`
	Seed              int64   `yaml:"seed"`
}

// DefaultConfig returns the standard bootstrap parameters: 1000 draws of
// 21-observation blocks at a 95% confidence level.
func DefaultConfig() Config {
	return Config{
		Iterations:        1000,
		BlockSize:         21,
		ConfidenceLevel:   0.95,
		MinObservations:   100,
		MaxFailureRate:    0.10,
		MinPracticalLower: 0.5,
	}
}

// Result is the typed outcome of one confidence-interval estimation.
type Result struct {
	validate.Summary
	PointEstimate   float64 `json:"point_estimate"`
	CILower         float64 `json:"ci_lower"`
	CIUpper         float64 `json:"ci_upper"`
	ConfidenceLevel float64 `json:"confidence_level"`
	IterationsUsed  int     `json:"iterations_used"`
}

// Engine runs block-bootstrap confidence interval estimation.
type Engine struct {
	cfg Config
}

// New creates a bootstrap engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run resamples the series Iterations times, computes the metric on each
// resample, and reports the percentile confidence interval. The call fails
// whole if more than MaxFailureRate of the resamples produce a non-finite
// metric; a CI silently computed on fewer draws would understate width.
func (e *Engine) Run(returns []float64, metric validate.MetricFunc) (Result, error) {
	if e.cfg.Iterations <= 0 || e.cfg.BlockSize <= 0 {
		return Result{}, fmt.Errorf("bootstrap config invalid: iterations=%d block_size=%d",
			e.cfg.Iterations, e.cfg.BlockSize)
	}
	if e.cfg.ConfidenceLevel <= 0 || e.cfg.ConfidenceLevel >= 1 {
		return Result{}, fmt.Errorf("confidence level %.3f outside (0, 1)", e.cfg.ConfidenceLevel)
	}

	res := Result{ConfidenceLevel: e.cfg.ConfidenceLevel}

	if len(returns) < e.cfg.MinObservations {
		res.Summary = validate.Failed(fmt.Sprintf("%s: %d observations, need %d",
			validate.ErrInsufficientData, len(returns), e.cfg.MinObservations))
		return res, nil
	}
	if stat.StdDev(returns, nil) == 0 {
		res.Summary = validate.Failed(fmt.Sprintf("%s: series has zero variance", validate.ErrDegenerateInput))
		return res, nil
	}

	rng := e.newRNG()
	point := metric(returns)
	res.PointEstimate = point

	draws := make([]float64, 0, e.cfg.Iterations)
	failed := 0
	for i := 0; i < e.cfg.Iterations; i++ {
		m := metric(ResampleBlocks(rng, returns, e.cfg.BlockSize))
		if math.IsNaN(m) || math.IsInf(m, 0) {
			failed++
			continue
		}
		draws = append(draws, m)
	}
	res.IterationsUsed = len(draws)

	if failed > int(e.cfg.MaxFailureRate*float64(e.cfg.Iterations)) {
		log.Warn().Int("failed", failed).Int("iterations", e.cfg.Iterations).
			Msg("Bootstrap discarded too many degenerate resamples")
		res.Summary = validate.Failed(fmt.Sprintf("%d of %d resamples produced no finite metric (limit %.0f%%)",
			failed, e.cfg.Iterations, e.cfg.MaxFailureRate*100))
		return res, nil
	}

	sort.Float64s(draws)
	tail := (1 - e.cfg.ConfidenceLevel) / 2
	res.CILower = stat.Quantile(tail, stat.Empirical, draws, nil)
	res.CIUpper = stat.Quantile(1-tail, stat.Empirical, draws, nil)

	switch {
	case res.CILower <= 0:
		res.Summary = validate.FailedWithMetric(point,
			fmt.Sprintf("confidence interval [%.3f, %.3f] does not exclude zero", res.CILower, res.CIUpper))
	case res.CILower < e.cfg.MinPracticalLower:
		res.Summary = validate.FailedWithMetric(point,
			fmt.Sprintf("CI lower bound %.3f below practical minimum %.2f", res.CILower, e.cfg.MinPracticalLower))
	default:
		res.Summary = validate.Passed(point,
			fmt.Sprintf("metric %.3f with %.0f%% CI [%.3f, %.3f]",
				point, e.cfg.ConfidenceLevel*100, res.CILower, res.CIUpper))
	}

	return res, nil
}

func (e *Engine) newRNG() *rand.Rand {
	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ResampleBlocks builds a series of the same length as data by drawing
// overlapping contiguous blocks with replacement. Shared by the CI engine
// and the bootstrap-derived significance threshold so both walk the same
// resampling distribution.
func ResampleBlocks(rng *rand.Rand, data []float64, blockSize int) []float64 {
	n := len(data)
	if blockSize > n {
		blockSize = n
	}

	out := make([]float64, 0, n+blockSize)
	for len(out) < n {
		start := rng.Intn(n - blockSize + 1)
		out = append(out, data[start:start+blockSize]...)
	}
	return out[:n]
}
