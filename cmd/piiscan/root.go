package piiscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/piiscan/internal/errs"
	"github.com/redactyl/piiscan/internal/logging"
	"github.com/redactyl/piiscan/internal/telemetry"
)

var (
	flagJSON          bool
	flagSARIF         bool
	flagTable         bool
	flagNoColor       bool
	flagWorkers       int
	flagTimeout       time.Duration
	flagLogLevel      string
	flagLogJSON       bool
	flagNoUpdateCheck bool

	version = "0.1.0"
)

// shutdownTelemetry flushes the meter provider installed for this run.
var shutdownTelemetry = func(context.Context) error { return nil }

// errFindings signals exit code 1: the scan worked and found something.
var errFindings = errors.New("matches found")

// rootCmd is the base Cobra command for the piiscan CLI.
var rootCmd = &cobra.Command{
	Use:           "piiscan",
	Short:         "Find personal data in source trees",
	Long:          "piiscan searches a directory or a GitHub repository for text matching named patterns such as emails, phone numbers and keys.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		log := logging.Init(logging.Options{Level: flagLogLevel, JSON: flagLogJSON})
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		shutdown, err := telemetry.Init(ctx, telemetry.Options{Service: "piiscan", Version: version, Logger: log})
		if err != nil {
			return err
		}
		shutdownTelemetry = shutdown
		return nil
	},
}

// Execute runs the piiscan CLI. It should be called by the main package.
func Execute() {
	err := rootCmd.Execute()
	flushTelemetry()
	os.Exit(exitCode(err))
}

func flushTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTelemetry(ctx); err != nil {
		slog.Warn("metrics flush failed", "error", err)
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFindings):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v (%s)\n", err, errs.Code(err))
		return 2
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagSARIF, "sarif", false, "emit SARIF 2.1.0")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "output in table format with borders")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "concurrent file reads (0 = GOMAXPROCS, max 32)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "abort after this long (e.g. 2m, 0 = no limit)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error (default warn, or PIISCAN_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "structured JSON logs on stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
}
