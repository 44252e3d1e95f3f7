package datasplit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
)

func constantSeries(n int, r float64) *series.ReturnSeries {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]series.Point, n)
	for i := range points {
		points[i] = series.Point{Date: start.AddDate(0, 0, i), Return: r}
	}
	rs, err := series.New(points)
	if err != nil {
		panic(err)
	}
	return rs
}

func partitions(rs *series.ReturnSeries) (train, val, test series.PeriodBounds) {
	n := rs.Len()
	train = series.PeriodBounds{Start: rs.DateAt(0), End: rs.DateAt(n / 3)}
	val = series.PeriodBounds{Start: rs.DateAt(n / 3), End: rs.DateAt(2 * n / 3)}
	test = series.PeriodBounds{Start: rs.DateAt(2 * n / 3), End: rs.DateAt(n - 1).AddDate(0, 0, 1)}
	return train, val, test
}

func fixedMetrics(train, val, test float64) validate.PeriodEvaluator {
	call := 0
	metrics := []float64{train, val, test}
	return validate.PeriodEvaluatorFunc(func(context.Context, series.PeriodBounds) (float64, error) {
		m := metrics[call]
		call++
		return m, nil
	})
}

func TestEvaluate_ConstantMetricPassesWithFullConsistency(t *testing.T) {
	rs := constantSeries(300, 0.001)
	train, val, test := partitions(rs)

	v := New(DefaultConfig())
	res, err := v.Evaluate(context.Background(), rs, fixedMetrics(1.4, 1.4, 1.4), train, val, test)
	require.NoError(t, err)

	assert.True(t, res.Pass, "Identical metrics across partitions should pass: %s", res.Reason)
	assert.InDelta(t, 1.0, res.Consistency, 1e-9, "Zero dispersion means consistency 1")
	assert.Equal(t, validate.StatusPass, res.Status)
	assert.InDelta(t, 1.0, res.Degradation, 1e-9)
}

func TestEvaluate_NegativeMetricsScoreZeroConsistency(t *testing.T) {
	// An abs()-based formula would score these three a spurious ~0.83.
	rs := constantSeries(300, -0.001)
	train, val, test := partitions(rs)

	v := New(DefaultConfig())
	res, err := v.Evaluate(context.Background(), rs, fixedMetrics(-0.5, -0.6, -0.7), train, val, test)
	require.NoError(t, err)

	assert.False(t, res.Pass)
	assert.Equal(t, 0.0, res.Consistency, "Mean below epsilon must force consistency to exactly 0")
	assert.Contains(t, res.Reason, "epsilon")
}

func TestEvaluate_NearZeroMeanRejected(t *testing.T) {
	rs := constantSeries(300, 0.0)
	train, val, test := partitions(rs)

	v := New(DefaultConfig())
	res, err := v.Evaluate(context.Background(), rs, fixedMetrics(0.05, 0.02, 0.04), train, val, test)
	require.NoError(t, err)

	assert.False(t, res.Pass)
	assert.Equal(t, 0.0, res.Consistency)
}

func TestConsistencyScore_MonotoneInDispersion(t *testing.T) {
	mean := 1.2
	prev := consistencyScore(mean, 0)
	assert.InDelta(t, 1.0, prev, 1e-9)

	for _, sd := range []float64{0.1, 0.3, 0.6, 1.0, 1.5, 3.0} {
		cur := consistencyScore(mean, sd)
		assert.LessOrEqual(t, cur, prev,
			"Consistency must not increase with dispersion (sd=%.1f)", sd)
		prev = cur
	}
	assert.Equal(t, 0.0, consistencyScore(mean, 5.0), "Dispersion beyond the mean clamps to 0")
}

func TestEvaluate_DegradationGate(t *testing.T) {
	rs := constantSeries(300, 0.001)
	train, val, test := partitions(rs)

	// Test metric clears 1.0 but retains only half the train performance.
	v := New(DefaultConfig())
	res, err := v.Evaluate(context.Background(), rs, fixedMetrics(2.4, 1.8, 1.2), train, val, test)
	require.NoError(t, err)

	assert.False(t, res.Pass)
	assert.Contains(t, res.Reason, "degradation")
	assert.InDelta(t, 0.5, res.Degradation, 1e-9)
}

func TestEvaluate_InsufficientDataFailsClosed(t *testing.T) {
	rs := constantSeries(30, 0.001) // ~10 observations per partition
	train, val, test := partitions(rs)

	v := New(DefaultConfig())
	res, err := v.Evaluate(context.Background(), rs, fixedMetrics(1.4, 1.4, 1.4), train, val, test)
	require.NoError(t, err, "Data shortage is a verdict, not an error")

	assert.False(t, res.Pass)
	assert.Equal(t, validate.StatusFail, res.Status)
	assert.Contains(t, res.Reason, "insufficient data")
}

func TestEvaluate_UpstreamFailureIsUnavailable(t *testing.T) {
	rs := constantSeries(300, 0.001)
	train, val, test := partitions(rs)

	broken := validate.PeriodEvaluatorFunc(func(context.Context, series.PeriodBounds) (float64, error) {
		return 0, fmt.Errorf("backtest engine timeout")
	})

	v := New(DefaultConfig())
	res, err := v.Evaluate(context.Background(), rs, broken, train, val, test)
	require.NoError(t, err)

	assert.Equal(t, validate.StatusUnavailable, res.Status,
		"Collaborator failure must not be conflated with a statistical fail")
	assert.False(t, res.Pass)
}

func TestEvaluate_RejectsOverlappingPartitions(t *testing.T) {
	rs := constantSeries(300, 0.001)
	train, _, test := partitions(rs)

	// Validation window starting inside the train window.
	overlapping := series.PeriodBounds{Start: train.Start.AddDate(0, 0, 10), End: test.Start}

	v := New(DefaultConfig())
	_, err := v.Evaluate(context.Background(), rs, fixedMetrics(1, 1, 1), train, overlapping, test)
	assert.Error(t, err, "Overlapping partitions are a caller bug, not a verdict")
}
