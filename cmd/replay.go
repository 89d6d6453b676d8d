package cmd

import (
	"fmt"
	"time"

	"github.com/agentkiln/stepforge/internal/engine"
	"github.com/agentkiln/stepforge/internal/jobspace"
	"github.com/agentkiln/stepforge/internal/membank"
	"github.com/spf13/cobra"
)

var (
	replayJobID    string
	replayTaskPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run a task declaration against an existing job, reusing validated artifacts",
	Long: `replay runs the same engine loop as run, but against an
existing --job id rather than generating a new one. Any step whose
declared outputs are still present and validated in that job's
manifest is skipped, so replay only re-executes steps with a declared
output that is missing, unvalidated, or (with hashing enabled) changed
on disk. A step is not re-executed merely because one of its inputs
was regenerated.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayJobID, "job", "", "existing job id to replay (required)")
	replayCmd.Flags().StringVar(&replayTaskPath, "task", "", "path to the task declaration YAML file (required)")
	_ = replayCmd.MarkFlagRequired("job")
	_ = replayCmd.MarkFlagRequired("task")
}

func runReplay(cmd *cobra.Command, args []string) error {
	registry := buildRegistry(cfg, membank.Open(cfg))
	tf, builtSteps, err := loadSteps(replayTaskPath, registry)
	if err != nil {
		return err
	}

	job, err := jobspace.New(cfg, tf.TaskName, tf.Inputs, replayJobID, time.Now())
	if err != nil {
		return fmt.Errorf("resolving job workspace: %w", err)
	}
	if err := job.SetupWorkdir(cmd.Context()); err != nil {
		return fmt.Errorf("setting up job workspace: %w", err)
	}

	log.Info("replay started", "job_id", job.ID, "task_name", tf.TaskName)

	runner, err := engine.New(cfg, job, newConsoleReporter(log))
	if err != nil {
		return fmt.Errorf("initializing runner: %w", err)
	}
	defer runner.Close()

	summary, err := runner.RunAll(cmd.Context(), builtSteps)
	if err != nil {
		return fmt.Errorf("replaying job: %w", err)
	}

	log.Info("replay finished", "job_id", job.ID, "success", summary.Success,
		"steps_executed", summary.StepsExecuted, "steps_skipped", summary.StepsSkipped)

	if !summary.Success {
		cmd.SilenceUsage = true
		return fmt.Errorf("replay of job %s failed at step %s: %s", job.ID, summary.FailedStep, summary.Error)
	}
	return nil
}
