// Package cmd implements the steprunner CLI: run, replay, distill, and
// config, wired over internal/engine, internal/taskdecl, and
// internal/step's built-in registry.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/runlog"
	"github.com/agentkiln/stepforge/internal/telemetry"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags; it defaults to "dev" for
// local builds.
var version = "dev"

var (
	// configPath is the --config persistent flag; empty uses built-in
	// defaults plus STEPRUNNER_ANTHROPIC_API_KEY.
	configPath string

	// logMode is the --log-mode persistent flag ("production" or
	// "development").
	logMode string
)

// cfg holds the loaded, immutable configuration, available to every
// subcommand. Initialized in PersistentPreRunE.
var cfg *config.Config

// log is the process-wide structured logger, available to every
// subcommand. Initialized in PersistentPreRunE.
var log *runlog.Logger

// StartTime holds the command start time for duration reporting.
var StartTime time.Time

// telemetryCleanup flushes Sentry, if initialized. Set in
// PersistentPreRunE, called by Execute after the command returns.
var telemetryCleanup func() = func() {}

var rootCmd = &cobra.Command{
	Use:     "steprunner",
	Version: version,
	Short:   "Deterministic step runner for declared jobs",
	Long: `steprunner executes a declared, ordered list of steps against a
job workspace, persisting every artifact it produces in a
content-addressed manifest so a later replay can skip steps whose
outputs are still valid.

Settings:
  runtime.retries_max   Attempts per step before giving up
  runtime.stop_on_fail  Whether a failed step halts the remaining run
  artifacts.manifest_file  Name of the per-job manifest document`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		StartTime = time.Now()

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded

		logger, err := runlog.New(logMode, "")
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		log = logger

		telemetryCleanup = telemetry.Init(version)

		return nil
	},
}

// Execute runs the root command, canceling its context on SIGINT/SIGTERM.
func Execute() error {
	ctx := setupSignalContext(context.Background())
	defer telemetryCleanup()
	defer func() {
		if log != nil {
			log.Sync()
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// setupSignalContext returns a context canceled on SIGINT or SIGTERM,
// so an in-flight step can finish its current attempt and the engine
// can still write execution_summary.json before the process exits.
func setupSignalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-parent.Done():
		}
		signal.Stop(sigCh)
		close(sigCh)
	}()

	return ctx
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(distillCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a steprunner config YAML file")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "development", "log encoder: development or production")
}
