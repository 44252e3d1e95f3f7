// Package validate defines the contract shared by all statistical
// validators: the pass/reason outcome interface, the status taxonomy, and
// the evaluation callback supplied by the backtest collaborator.
package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/veritrade/statval/internal/domain/series"
)

// Status distinguishes a statistical verdict from an inability to reach one.
type Status string

const (
	// StatusPass means the validator ran and the strategy cleared its bar.
	StatusPass Status = "pass"
	// StatusFail means the validator ran and the strategy did not clear it.
	StatusFail Status = "fail"
	// StatusUnavailable means the validator could not be evaluated, e.g.
	// because the upstream backtest callback failed. Never conflated with
	// a statistical fail.
	StatusUnavailable Status = "unavailable"
)

// Sentinel errors for the locally recovered failure modes. Validators turn
// these into failed-but-reported results instead of propagating them.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrDegenerateInput  = errors.New("degenerate input")
)

// UpstreamError marks a failure of the backtest-evaluation collaborator,
// as opposed to a statistical rejection of the strategy.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream evaluation failed during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err originates from the evaluation collaborator.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// Outcome is implemented by every validator-specific result type.
type Outcome interface {
	Passed() bool
	Why() string
}

// Summary carries the fields common to all validator results; each
// validator embeds it in its own typed result.
type Summary struct {
	Status      Status   `json:"status"`
	Pass        bool     `json:"pass"`
	Reason      string   `json:"reason"`
	MetricValue *float64 `json:"metric_value,omitempty"`
}

func (s Summary) Passed() bool { return s.Pass }
func (s Summary) Why() string  { return s.Reason }

// Passed builds a passing summary around a point estimate.
func Passed(metric float64, reason string) Summary {
	return Summary{Status: StatusPass, Pass: true, Reason: reason, MetricValue: &metric}
}

// Failed builds a failing summary. A metric may still be attached when one
// was computed before the rejection.
func Failed(reason string) Summary {
	return Summary{Status: StatusFail, Reason: reason}
}

// FailedWithMetric builds a failing summary that retains the point estimate.
func FailedWithMetric(metric float64, reason string) Summary {
	return Summary{Status: StatusFail, Reason: reason, MetricValue: &metric}
}

// Unavailable builds a summary for validators that could not run at all.
func Unavailable(reason string) Summary {
	return Summary{Status: StatusUnavailable, Reason: reason}
}

// PeriodEvaluator is the callback contract supplied by the
// backtest-execution collaborator: compute the risk-adjusted metric of the
// candidate strategy over one date range. Implementations may block for
// seconds per call; cancellation is the caller's responsibility via ctx.
type PeriodEvaluator interface {
	EvaluatePeriod(ctx context.Context, bounds series.PeriodBounds) (float64, error)
}

// PeriodEvaluatorFunc adapts a plain function to PeriodEvaluator.
type PeriodEvaluatorFunc func(ctx context.Context, bounds series.PeriodBounds) (float64, error)

func (f PeriodEvaluatorFunc) EvaluatePeriod(ctx context.Context, bounds series.PeriodBounds) (float64, error) {
	return f(ctx, bounds)
}

// MetricFunc computes a scalar risk-adjusted metric from raw returns. Used
// by the resampling components that operate on precomputed series instead
// of the period callback.
type MetricFunc func(returns []float64) float64
