package pipeline

import (
	"time"

	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/validate"
	"github.com/veritrade/statval/internal/validate/baseline"
	"github.com/veritrade/statval/internal/validate/bootstrap"
	"github.com/veritrade/statval/internal/validate/correction"
	"github.com/veritrade/statval/internal/validate/datasplit"
	"github.com/veritrade/statval/internal/validate/walkforward"
)

// Candidate is one strategy under validation: its identity, its already
// computed return series, and optionally a live evaluation callback from
// the backtest collaborator. With a nil Evaluator the pipeline evaluates
// periods directly from the return series.
type Candidate struct {
	ID        string
	Name      string
	Returns   *series.ReturnSeries
	Evaluator validate.PeriodEvaluator
}

// Report aggregates the five validator results for one candidate into a
// single JSON-serializable record.
type Report struct {
	RunID       string    `json:"run_id"`
	CandidateID string    `json:"candidate_id"`
	Name        string    `json:"name,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`

	Pass bool `json:"pass"`

	DataSplit   *datasplit.Result   `json:"data_split,omitempty"`
	WalkForward *walkforward.Result `json:"walk_forward,omitempty"`
	Bonferroni  *correction.Result  `json:"bonferroni,omitempty"`
	Bootstrap   *bootstrap.Result   `json:"bootstrap,omitempty"`
	Baseline    *baseline.Result    `json:"baseline,omitempty"`

	// Error records an unrecoverable per-candidate problem (bad inputs,
	// empty series). It never aborts the rest of a batch.
	Error string `json:"error,omitempty"`
}

// Outcomes lists the per-validator outcomes that were produced.
func (r *Report) Outcomes() map[string]validate.Outcome {
	out := make(map[string]validate.Outcome, 5)
	if r.DataSplit != nil {
		out["data_split"] = r.DataSplit
	}
	if r.WalkForward != nil {
		out["walk_forward"] = r.WalkForward
	}
	if r.Bonferroni != nil {
		out["bonferroni"] = r.Bonferroni
	}
	if r.Bootstrap != nil {
		out["bootstrap"] = r.Bootstrap
	}
	if r.Baseline != nil {
		out["baseline"] = r.Baseline
	}
	return out
}

// finalize computes the overall verdict: every produced validator must
// pass, and all five must have been produced.
func (r *Report) finalize() {
	outcomes := r.Outcomes()
	if len(outcomes) < 5 || r.Error != "" {
		r.Pass = false
		return
	}
	for _, o := range outcomes {
		if !o.Passed() {
			r.Pass = false
			return
		}
	}
	r.Pass = true
}
