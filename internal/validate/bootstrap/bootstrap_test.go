package bootstrap

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
)

// driftingReturns builds a seeded series with positive drift so the Sharpe
// CI should sit well above zero.
func driftingReturns(n int, mean, sd float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + rng.NormFloat64()*sd
	}
	return out
}

func TestRun_SeedMakesResultsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 99
	returns := driftingReturns(500, 0.002, 0.01, 1)

	a, err := New(cfg).Run(returns, series.SharpeRatio)
	require.NoError(t, err)
	b, err := New(cfg).Run(returns, series.SharpeRatio)
	require.NoError(t, err)

	assert.Equal(t, a.CILower, b.CILower, "Same seed must reproduce the same interval")
	assert.Equal(t, a.CIUpper, b.CIUpper)
	assert.Equal(t, a.PointEstimate, b.PointEstimate)
}

func TestRun_StrongDriftPasses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	returns := driftingReturns(756, 0.002, 0.004, 2)

	res, err := New(cfg).Run(returns, series.SharpeRatio)
	require.NoError(t, err)

	assert.True(t, res.Pass, "Strong stable drift should pass: %s", res.Reason)
	assert.Equal(t, validate.StatusPass, res.Status)
	assert.Less(t, res.CILower, res.PointEstimate)
	assert.Greater(t, res.CIUpper, res.PointEstimate)
	assert.Greater(t, res.CILower, 0.0)
	assert.Equal(t, cfg.Iterations, res.IterationsUsed)
}

func TestRun_NoisySeriesStraddlingZeroFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 11
	returns := driftingReturns(300, 0.0, 0.01, 3)

	res, err := New(cfg).Run(returns, series.SharpeRatio)
	require.NoError(t, err)

	assert.False(t, res.Pass, "Zero-drift noise must not pass")
	assert.Equal(t, validate.StatusFail, res.Status)
	assert.Less(t, res.CILower, cfg.MinPracticalLower)
}

func TestRun_TooFewObservationsFailsClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 5
	returns := driftingReturns(99, 0.002, 0.004, 4)

	res, err := New(cfg).Run(returns, series.SharpeRatio)
	require.NoError(t, err, "Data shortage is a verdict, not an error")

	assert.False(t, res.Pass)
	assert.Contains(t, res.Reason, "insufficient data")
}

func TestRun_ZeroVarianceFailsClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 5
	flat := make([]float64, 200)
	for i := range flat {
		flat[i] = 0.001
	}

	res, err := New(cfg).Run(flat, series.SharpeRatio)
	require.NoError(t, err)

	assert.False(t, res.Pass)
	assert.Contains(t, res.Reason, "degenerate input")
}

func TestRun_DegenerateMetricFailsWholeCall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 5
	returns := driftingReturns(300, 0.002, 0.01, 6)

	alwaysNaN := func([]float64) float64 { return math.NaN() }
	res, err := New(cfg).Run(returns, alwaysNaN)
	require.NoError(t, err)

	assert.False(t, res.Pass, "A CI over discarded draws would understate its width")
	assert.Equal(t, 0, res.IterationsUsed)
	assert.Contains(t, res.Reason, "resamples")
}

func TestRun_MoreIterationsKeepWidthStable(t *testing.T) {
	returns := driftingReturns(500, 0.002, 0.01, 8)

	few := DefaultConfig()
	few.Seed = 21
	few.Iterations = 200
	many := DefaultConfig()
	many.Seed = 21
	many.Iterations = 2000

	a, err := New(few).Run(returns, series.SharpeRatio)
	require.NoError(t, err)
	b, err := New(many).Run(returns, series.SharpeRatio)
	require.NoError(t, err)

	widthFew := a.CIUpper - a.CILower
	widthMany := b.CIUpper - b.CILower
	require.Greater(t, widthFew, 0.0)

	// Empirical quantiles jitter between draw counts; the interval must not
	// blow up as iterations grow.
	assert.LessOrEqual(t, widthMany, widthFew*1.5)
	assert.GreaterOrEqual(t, widthMany, widthFew*0.5)
}

func TestResampleBlocks_PreservesLengthAndMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	seen := map[float64]bool{}
	for _, v := range data {
		seen[v] = true
	}

	for i := 0; i < 50; i++ {
		out := ResampleBlocks(rng, data, 3)
		require.Len(t, out, len(data))
		for _, v := range out {
			assert.True(t, seen[v], "Resample may only contain source observations")
		}
	}
}

func TestResampleBlocks_BlockLargerThanSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := []float64{0.1, 0.2, 0.3}

	out := ResampleBlocks(rng, data, 21)
	assert.Equal(t, data, out, "An oversized block collapses to the series itself")
}

func TestRun_InvalidConfigIsAnError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceLevel = 1.2

	_, err := New(cfg).Run(driftingReturns(300, 0.001, 0.01, 9), series.SharpeRatio)
	assert.Error(t, err, "A malformed confidence level is a caller bug, not a verdict")
}
