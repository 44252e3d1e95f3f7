// Package config holds the YAML configuration surface for the validation
// pipeline. Every knob is optional; unmarshaling overlays a file on top of
// the defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veritrade/statval/internal/validate/baseline"
	"github.com/veritrade/statval/internal/validate/bootstrap"
	"github.com/veritrade/statval/internal/validate/correction"
	"github.com/veritrade/statval/internal/validate/datasplit"
	"github.com/veritrade/statval/internal/validate/walkforward"
)

// Config aggregates the configuration of all five validators plus the
// orchestrator.
type Config struct {
	DataSplit   datasplit.Config   `yaml:"data_split"`
	WalkForward walkforward.Config `yaml:"walk_forward"`
	Correction  correction.Config  `yaml:"correction"`
	Bootstrap   bootstrap.Config   `yaml:"bootstrap"`
	Baseline    baseline.Config    `yaml:"baseline"`
	Pipeline    PipelineConfig     `yaml:"pipeline"`
}

// PipelineConfig controls orchestration: validator parallelism and the
// guards around the backtest-evaluation collaborator.
type PipelineConfig struct {
	Parallel bool `yaml:"parallel"`

	// EvaluationsPerSecond caps calls to the backtest callback; 0 disables
	// the limiter. Walk-forward windows are the main call multiplier.
	EvaluationsPerSecond float64 `yaml:"evaluations_per_second"`
	EvaluationBurst      int     `yaml:"evaluation_burst"`

	// Circuit breaker over the evaluation callback
	BreakerConsecutiveFailures uint32        `yaml:"breaker_consecutive_failures"`
	BreakerTimeout             time.Duration `yaml:"breaker_timeout"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		DataSplit:   datasplit.DefaultConfig(),
		WalkForward: walkforward.DefaultConfig(),
		Correction:  correction.DefaultConfig(),
		Bootstrap:   bootstrap.DefaultConfig(),
		Baseline:    baseline.DefaultConfig(),
		Pipeline: PipelineConfig{
			Parallel:                   false,
			EvaluationsPerSecond:       0,
			EvaluationBurst:            1,
			BreakerConsecutiveFailures: 5,
			BreakerTimeout:             30 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks every knob for safety and consistency, returning one
// message per violation.
func (c Config) Validate() []string {
	var errs []string

	if c.DataSplit.Epsilon <= 0 {
		errs = append(errs, fmt.Sprintf("data_split: epsilon %.3f must be positive", c.DataSplit.Epsilon))
	}
	if c.DataSplit.MinObservations < 1 {
		errs = append(errs, fmt.Sprintf("data_split: min_observations %d must be at least 1", c.DataSplit.MinObservations))
	}

	if c.WalkForward.TrainSize < 1 || c.WalkForward.TestSize < 1 {
		errs = append(errs, fmt.Sprintf("walk_forward: train_size %d and test_size %d must be positive",
			c.WalkForward.TrainSize, c.WalkForward.TestSize))
	}
	if c.WalkForward.StepSize < 1 {
		errs = append(errs, fmt.Sprintf("walk_forward: step_size %d must be positive", c.WalkForward.StepSize))
	}
	if c.WalkForward.MinWindows < 1 {
		errs = append(errs, fmt.Sprintf("walk_forward: min_windows %d must be at least 1", c.WalkForward.MinWindows))
	}

	if c.Correction.Alpha <= 0 || c.Correction.Alpha >= 1 {
		errs = append(errs, fmt.Sprintf("correction: alpha %.3f outside (0, 1)", c.Correction.Alpha))
	}
	if c.Correction.NumStrategies < 1 {
		errs = append(errs, fmt.Sprintf("correction: num_strategies %d must be at least 1", c.Correction.NumStrategies))
	}
	if m := c.Correction.Mode; m != correction.ModeParametric && m != correction.ModeBootstrap {
		errs = append(errs, fmt.Sprintf("correction: unknown mode %q", m))
	}

	if c.Bootstrap.Iterations < 1 {
		errs = append(errs, fmt.Sprintf("bootstrap: iterations %d must be positive", c.Bootstrap.Iterations))
	}
	if c.Bootstrap.BlockSize < 1 {
		errs = append(errs, fmt.Sprintf("bootstrap: block_size %d must be positive", c.Bootstrap.BlockSize))
	}
	if c.Bootstrap.ConfidenceLevel <= 0 || c.Bootstrap.ConfidenceLevel >= 1 {
		errs = append(errs, fmt.Sprintf("bootstrap: confidence_level %.3f outside (0, 1)", c.Bootstrap.ConfidenceLevel))
	}
	if c.Bootstrap.MaxFailureRate < 0 || c.Bootstrap.MaxFailureRate > 1 {
		errs = append(errs, fmt.Sprintf("bootstrap: max_failure_rate %.3f outside [0, 1]", c.Bootstrap.MaxFailureRate))
	}

	if len(c.Baseline.Baselines) == 0 {
		errs = append(errs, "baseline: at least one reference portfolio required")
	}

	if c.Pipeline.EvaluationsPerSecond < 0 {
		errs = append(errs, fmt.Sprintf("pipeline: evaluations_per_second %.2f must not be negative",
			c.Pipeline.EvaluationsPerSecond))
	}

	return errs
}
