package series

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily return series.
const TradingDaysPerYear = 252

// SharpeRatio computes the annualized Sharpe ratio of a daily return series
// with a zero risk-free rate. Degenerate inputs (empty series, zero
// variance) yield 0 rather than NaN so downstream comparisons stay finite.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}

	return mean / sd * math.Sqrt(TradingDaysPerYear)
}

// TotalReturn compounds a return series into a single growth figure.
func TotalReturn(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// AnnualizedVolatility scales the sample standard deviation of daily
// returns to a yearly horizon.
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown returns the largest peak-to-trough equity decline as a
// positive fraction (0.25 means a 25% drawdown).
func MaxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0

	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}

	return worst
}
