// Package datasplit checks that a strategy's performance is consistent
// across chronologically ordered train/validation/test partitions.
package datasplit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
)

// Config holds the split validator thresholds.
type Config struct {
	// Epsilon gates the consistency score: when the mean metric across the
	// three partitions is below it, consistency is exactly 0. This is what
	// keeps a losing strategy from scoring high consistency through the
	// abs() pitfall.
	Epsilon         float64 `yaml:"epsilon"`
	MinTestMetric   float64 `yaml:"min_test_metric"`
	MinConsistency  float64 `yaml:"min_consistency"`
	MinDegradation  float64 `yaml:"min_degradation"`
	MinObservations int     `yaml:"min_observations"`
}

// DefaultConfig returns the standard split thresholds.
func DefaultConfig() Config {
	return Config{
		Epsilon:         0.1,
		MinTestMetric:   1.0,
		MinConsistency:  0.6,
		MinDegradation:  0.7,
		MinObservations: 30,
	}
}

// Result is the typed outcome of one split validation.
type Result struct {
	validate.Summary
	Consistency float64 `json:"consistency"`
	Train       float64 `json:"train"`
	Validation  float64 `json:"val"`
	Test        float64 `json:"test"`
	Degradation float64 `json:"degradation"`
}

// Validator evaluates train/validation/test consistency. It is a pure
// function of its inputs plus the external period-metric callback.
type Validator struct {
	cfg Config
}

// New creates a split validator with the given thresholds.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Evaluate computes the metric in each partition and scores consistency and
// degradation. Data shortages fail closed with a reason; only collaborator
// failures surface as unavailable. The error return is reserved for invalid
// partition bounds, which are caller bugs rather than strategy verdicts.
func (v *Validator) Evaluate(ctx context.Context, rs *series.ReturnSeries, eval validate.PeriodEvaluator, train, val, test series.PeriodBounds) (Result, error) {
	if err := validatePartitions(train, val, test); err != nil {
		return Result{}, err
	}

	for _, p := range []struct {
		name   string
		bounds series.PeriodBounds
	}{{"train", train}, {"validation", val}, {"test", test}} {
		if n := rs.Slice(p.bounds).Len(); n < v.cfg.MinObservations {
			reason := fmt.Sprintf("%s: %s period has %d observations, need %d",
				validate.ErrInsufficientData, p.name, n, v.cfg.MinObservations)
			return Result{Summary: validate.Failed(reason)}, nil
		}
	}

	metrics := make([]float64, 3)
	for i, b := range []series.PeriodBounds{train, val, test} {
		m, err := eval.EvaluatePeriod(ctx, b)
		if err != nil {
			log.Warn().Err(err).Stringer("period", b).Msg("Split period evaluation failed")
			return Result{Summary: validate.Unavailable(fmt.Sprintf("period %s: %v", b, err))}, nil
		}
		metrics[i] = m
	}

	res := Result{
		Train:      metrics[0],
		Validation: metrics[1],
		Test:       metrics[2],
	}

	mean := stat.Mean(metrics, nil)
	if mean < v.cfg.Epsilon {
		res.Consistency = 0
		res.Summary = validate.FailedWithMetric(res.Test,
			fmt.Sprintf("mean metric %.3f below epsilon %.2f", mean, v.cfg.Epsilon))
		return res, nil
	}

	res.Consistency = consistencyScore(mean, stat.StdDev(metrics, nil))

	if res.Train > 0 {
		res.Degradation = res.Test / res.Train
	}

	switch {
	case res.Test <= v.cfg.MinTestMetric:
		res.Summary = validate.FailedWithMetric(res.Test,
			fmt.Sprintf("test metric %.3f below required %.2f", res.Test, v.cfg.MinTestMetric))
	case res.Consistency <= v.cfg.MinConsistency:
		res.Summary = validate.FailedWithMetric(res.Test,
			fmt.Sprintf("consistency %.3f below required %.2f", res.Consistency, v.cfg.MinConsistency))
	case res.Degradation <= v.cfg.MinDegradation:
		res.Summary = validate.FailedWithMetric(res.Test,
			fmt.Sprintf("test/train degradation %.3f below required %.2f", res.Degradation, v.cfg.MinDegradation))
	default:
		res.Summary = validate.Passed(res.Test,
			fmt.Sprintf("consistent across partitions (consistency %.3f)", res.Consistency))
	}

	return res, nil
}

// consistencyScore is 1 - dispersion/mean, clamped into [0, 1]. The mean
// must already be gated on epsilon by the caller.
func consistencyScore(mean, sd float64) float64 {
	score := 1 - sd/mean
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func validatePartitions(train, val, test series.PeriodBounds) error {
	for _, b := range []series.PeriodBounds{train, val, test} {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	if train.Overlaps(val) || val.Overlaps(test) || train.Overlaps(test) {
		return fmt.Errorf("split partitions must not overlap: train %s, val %s, test %s", train, val, test)
	}
	if val.Start.Before(train.End) || test.Start.Before(val.End) {
		return fmt.Errorf("split partitions must be chronologically ordered: train %s, val %s, test %s", train, val, test)
	}
	return nil
}
