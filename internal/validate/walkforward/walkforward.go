// Package walkforward checks strategy stability across rolling
// out-of-sample windows, simulating repeated real-time deployment.
package walkforward

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
)

// Config holds window geometry and pass thresholds, all in observation
// counts rather than calendar days so gapped series stay well defined.
type Config struct {
	TrainSize  int `yaml:"train_size"`
	TestSize   int `yaml:"test_size"`
	StepSize   int `yaml:"step_size"`
	MinWindows int `yaml:"min_windows"`

	MinMeanMetric  float64 `yaml:"min_mean_metric"`
	MinWinRate     float64 `yaml:"min_win_rate"`
	MinWorstMetric float64 `yaml:"min_worst_metric"`
	MaxStdDev      float64 `yaml:"max_std_dev"`
}

// DefaultConfig returns the standard walk-forward geometry: one year of
// training, one quarter of testing, quarterly stepping, three windows
// minimum.
func DefaultConfig() Config {
	return Config{
		TrainSize:      252,
		TestSize:       63,
		StepSize:       63,
		MinWindows:     3,
		MinMeanMetric:  0.5,
		MinWinRate:     0.6,
		MinWorstMetric: -0.5,
		MaxStdDev:      1.0,
	}
}

// Window is one train/test pair. Index bounds are end-exclusive positions
// into the source series; date bounds are derived from them.
type Window struct {
	Train series.PeriodBounds `json:"train"`
	Test  series.PeriodBounds `json:"test"`

	TrainStart int `json:"train_start_idx"`
	TrainEnd   int `json:"train_end_idx"`
	TestStart  int `json:"test_start_idx"`
	TestEnd    int `json:"test_end_idx"`
}

// WindowMetric pairs a window with its out-of-sample metric.
type WindowMetric struct {
	Window Window  `json:"window"`
	Metric float64 `json:"metric"`
}

// Result is the typed outcome of one walk-forward analysis.
type Result struct {
	validate.Summary
	MeanMetric  float64        `json:"mean_sharpe"`
	StdDev      float64        `json:"std_dev"`
	WinRate     float64        `json:"win_rate"`
	WorstWindow float64        `json:"worst_window"`
	NumWindows  int            `json:"n_windows"`
	Windows     []WindowMetric `json:"windows,omitempty"`
}

// Analyzer generates rolling windows and aggregates per-window metrics.
type Analyzer struct {
	cfg Config
}

// New creates a walk-forward analyzer.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// GenerateWindows slides train+test windows across the series. The next
// window starts at the END of the previous test window, never at
// start+step, so test windows cannot overlap even when the configured step
// is smaller than the test length. A step larger than the window span is
// honored as an intentional gap, which also cannot overlap.
func (a *Analyzer) GenerateWindows(rs *series.ReturnSeries) []Window {
	span := a.cfg.TrainSize + a.cfg.TestSize
	advance := span
	if a.cfg.StepSize > advance {
		advance = a.cfg.StepSize
	}

	var windows []Window
	for start := 0; start+span <= rs.Len(); start += advance {
		trainEnd := start + a.cfg.TrainSize
		testEnd := trainEnd + a.cfg.TestSize
		windows = append(windows, Window{
			Train:      boundsForRange(rs, start, trainEnd),
			Test:       boundsForRange(rs, trainEnd, testEnd),
			TrainStart: start,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
	}

	return windows
}

// Evaluate runs the per-window metric callback over the test window of each
// generated window and aggregates. Too few windows is reported as a
// non-evaluable failure, never a silent pass.
func (a *Analyzer) Evaluate(ctx context.Context, rs *series.ReturnSeries, eval validate.PeriodEvaluator) (Result, error) {
	windows := a.GenerateWindows(rs)
	if len(windows) < a.cfg.MinWindows {
		reason := fmt.Sprintf("%s: %d observations yield %d windows, need %d (train=%d test=%d)",
			validate.ErrInsufficientData, rs.Len(), len(windows), a.cfg.MinWindows,
			a.cfg.TrainSize, a.cfg.TestSize)
		return Result{Summary: validate.Failed(reason), NumWindows: len(windows)}, nil
	}

	metrics := make([]float64, 0, len(windows))
	windowMetrics := make([]WindowMetric, 0, len(windows))
	for i, w := range windows {
		m, err := eval.EvaluatePeriod(ctx, w.Test)
		if err != nil {
			log.Warn().Err(err).Int("window", i).Stringer("test", w.Test).
				Msg("Walk-forward window evaluation failed")
			return Result{
				Summary:    validate.Unavailable(fmt.Sprintf("window %d (%s): %v", i, w.Test, err)),
				NumWindows: len(windows),
			}, nil
		}
		metrics = append(metrics, m)
		windowMetrics = append(windowMetrics, WindowMetric{Window: w, Metric: m})
	}

	res := Result{
		MeanMetric:  stat.Mean(metrics, nil),
		StdDev:      stat.StdDev(metrics, nil),
		WorstWindow: worst(metrics),
		WinRate:     winRate(metrics),
		NumWindows:  len(windows),
		Windows:     windowMetrics,
	}

	switch {
	case res.MeanMetric <= a.cfg.MinMeanMetric:
		res.Summary = validate.FailedWithMetric(res.MeanMetric,
			fmt.Sprintf("mean window metric %.3f below required %.2f", res.MeanMetric, a.cfg.MinMeanMetric))
	case res.WinRate <= a.cfg.MinWinRate:
		res.Summary = validate.FailedWithMetric(res.MeanMetric,
			fmt.Sprintf("win rate %.0f%% below required %.0f%%", res.WinRate*100, a.cfg.MinWinRate*100))
	case res.WorstWindow <= a.cfg.MinWorstMetric:
		res.Summary = validate.FailedWithMetric(res.MeanMetric,
			fmt.Sprintf("worst window %.3f below required %.2f", res.WorstWindow, a.cfg.MinWorstMetric))
	case res.StdDev >= a.cfg.MaxStdDev:
		res.Summary = validate.FailedWithMetric(res.MeanMetric,
			fmt.Sprintf("window metric std dev %.3f above allowed %.2f", res.StdDev, a.cfg.MaxStdDev))
	default:
		res.Summary = validate.Passed(res.MeanMetric,
			fmt.Sprintf("stable across %d out-of-sample windows", res.NumWindows))
	}

	return res, nil
}

// boundsForRange maps [i, j) index positions to end-exclusive date bounds.
func boundsForRange(rs *series.ReturnSeries, i, j int) series.PeriodBounds {
	var end time.Time
	if j < rs.Len() {
		end = rs.DateAt(j)
	} else {
		end = rs.DateAt(rs.Len() - 1).AddDate(0, 0, 1)
	}
	return series.PeriodBounds{Start: rs.DateAt(i), End: end}
}

func worst(metrics []float64) float64 {
	w := metrics[0]
	for _, m := range metrics[1:] {
		if m < w {
			w = m
		}
	}
	return w
}

func winRate(metrics []float64) float64 {
	wins := 0
	for _, m := range metrics {
		if m > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(metrics))
}
