package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentkiln/stepforge/internal/engine"
	"github.com/agentkiln/stepforge/internal/jobspace"
	"github.com/agentkiln/stepforge/internal/membank"
	"github.com/spf13/cobra"
)

var (
	runTaskPath string
	runInputs   []string
	runJobID    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a task declaration's steps against a fresh or existing job",
	Long: `run parses a task declaration, builds its steps against the
built-in registry, and drives them through the retry/validate loop. A
job with no --job-id gets a deterministic one derived from its
start time and inputs, so rerunning the same task with the same
inputs within the same second produces the same job_id.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTaskPath, "task", "", "path to a task declaration YAML file (required)")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "job input as key=value, repeatable")
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "explicit job id; omit for a deterministic generated one")
	_ = runCmd.MarkFlagRequired("task")
}

func parseInputs(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	inputs, err := parseInputs(runInputs)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg, membank.Open(cfg))
	tf, builtSteps, err := loadSteps(runTaskPath, registry)
	if err != nil {
		return err
	}

	for k, v := range tf.Inputs {
		if _, ok := inputs[k]; !ok {
			inputs[k] = v
		}
	}

	job, err := jobspace.New(cfg, tf.TaskName, inputs, runJobID, time.Now())
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	if err := job.SetupWorkdir(cmd.Context()); err != nil {
		return fmt.Errorf("setting up job workspace: %w", err)
	}

	log.Info("job started", "job_id", job.ID, "task_name", tf.TaskName, "steps", len(builtSteps))

	runner, err := engine.New(cfg, job, newConsoleReporter(log))
	if err != nil {
		return fmt.Errorf("initializing runner: %w", err)
	}
	defer runner.Close()

	summary, err := runner.RunAll(cmd.Context(), builtSteps)
	if err != nil {
		return fmt.Errorf("running job: %w", err)
	}

	log.Info("job finished", "job_id", job.ID, "success", summary.Success,
		"steps_executed", summary.StepsExecuted, "steps_skipped", summary.StepsSkipped, "steps_failed", summary.StepsFailed)

	if !summary.Success {
		cmd.SilenceUsage = true
		return fmt.Errorf("job %s failed at step %s: %s", job.ID, summary.FailedStep, summary.Error)
	}
	return nil
}
