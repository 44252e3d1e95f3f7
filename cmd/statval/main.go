package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "statval"
	version = "v0.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Statistical validation of trading strategy backtests",
		Version: version,
		Long: `statval decides whether a strategy's backtested performance is genuine
skill rather than noise, data leakage, or multiple-testing luck.

It runs five validators over an already-computed return series: temporal
data split, walk-forward analysis, multiple-comparison correction,
block-bootstrap confidence intervals, and baseline comparison.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
