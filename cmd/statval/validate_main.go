package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/veritrade/statval/internal/config"
	"github.com/veritrade/statval/internal/domain/series"
	"github.com/veritrade/statval/internal/metrics"
	"github.com/veritrade/statval/internal/pipeline"
	"github.com/veritrade/statval/internal/validate/baseline"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <returns.json> [more-returns.json...]",
		Short: "Validate one or more candidate return series",
		Long: `Run the full validation pipeline over candidate return series files.

Each file holds a JSON array of {"date": "2024-01-02", "return": 0.0012}
observations in chronological order. The aggregated per-candidate reports
are written to stdout as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidate,
	}

	addValidateFlags(cmd.Flags())

	return cmd
}

func addValidateFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file (defaults apply when omitted)")
	fs.String("baselines", "", "JSON file with precomputed baseline records")
	fs.Int("strategies", 0, "override the number of candidate strategies screened (Bonferroni N)")
	fs.Bool("parallel", false, "run the five validators concurrently per candidate")
	fs.Duration("timeout", 10*time.Minute, "overall wall-clock budget for the batch")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	baselinesPath, _ := cmd.Flags().GetString("baselines")
	strategies, _ := cmd.Flags().GetInt("strategies")
	parallel, _ := cmd.Flags().GetBool("parallel")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if strategies > 0 {
		cfg.Correction.NumStrategies = strategies
	}
	if parallel {
		cfg.Pipeline.Parallel = true
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}

	sim, err := loadBaselineSimulator(baselinesPath)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	if err := reg.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn().Err(err).Msg("Metrics registration failed, continuing without")
		reg = nil
	}

	opts := []pipeline.Option{}
	if reg != nil {
		opts = append(opts, pipeline.WithMetrics(reg))
	}
	orch := pipeline.New(cfg, sim, opts...)

	candidates := make([]pipeline.Candidate, 0, len(args))
	for _, path := range args {
		rs, err := loadReturnSeries(path)
		if err != nil {
			return fmt.Errorf("candidate %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		candidates = append(candidates, pipeline.Candidate{ID: name, Name: name, Returns: rs})
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("bonferroni_n", cfg.Correction.NumStrategies).
		Bool("parallel", cfg.Pipeline.Parallel).
		Msg("Starting validation batch")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reports := orch.ValidateBatch(ctx, candidates)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// loadReturnSeries parses a JSON file of dated returns into a series.
func loadReturnSeries(path string) (*series.ReturnSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read returns file: %w", err)
	}

	var raw []struct {
		Date   string  `json:"date"`
		Return float64 `json:"return"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse returns JSON: %w", err)
	}

	points := make([]series.Point, 0, len(raw))
	for _, r := range raw {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", r.Date, err)
		}
		points = append(points, series.Point{Date: d, Return: r.Return})
	}

	return series.New(points)
}

// loadBaselineSimulator builds a file-backed baseline collaborator. Without
// a file every baseline reports unavailable, which the comparator handles
// without failing the run.
func loadBaselineSimulator(path string) (baseline.Simulator, error) {
	if path == "" {
		return baseline.SimulatorFunc(func(_ context.Context, id string, _ series.PeriodBounds) (baseline.Record, error) {
			return baseline.Record{}, fmt.Errorf("no baseline data configured for %s", id)
		}), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baselines file: %w", err)
	}

	var records map[string]baseline.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse baselines JSON: %w", err)
	}

	return baseline.SimulatorFunc(func(_ context.Context, id string, bounds series.PeriodBounds) (baseline.Record, error) {
		rec, ok := records[id]
		if !ok {
			return baseline.Record{}, fmt.Errorf("no baseline record for %s", id)
		}
		rec.ID = id
		rec.Bounds = bounds
		return rec, nil
	}), nil
}
