package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentkiln/stepforge/internal/jobspace"
	"github.com/agentkiln/stepforge/internal/manifest"
	"github.com/agentkiln/stepforge/internal/membank"
	"github.com/spf13/cobra"
)

var (
	distillJobID    string
	distillTaskName string
)

var distillCmd = &cobra.Command{
	Use:   "distill",
	Short: "Propose a success-pattern summary from a completed job's manifest",
	Long: `distill reads a completed job's manifest and writes a success
pattern proposal describing which artifacts were produced and
validated. It never edits systemPatterns.md directly: a human must
review the proposal and merge it in, by design of the memory bank's
propose-don't-auto-apply policy.`,
	RunE: runDistill,
}

func init() {
	distillCmd.Flags().StringVar(&distillJobID, "job", "", "job id to distill (required)")
	distillCmd.Flags().StringVar(&distillTaskName, "task-name", "", "task name recorded in the proposal")
	_ = distillCmd.MarkFlagRequired("job")
}

func runDistill(cmd *cobra.Command, args []string) error {
	job, err := jobspace.New(cfg, distillTaskName, nil, distillJobID, time.Now())
	if err != nil {
		return fmt.Errorf("resolving job workspace: %w", err)
	}

	manifestPath := filepath.Join(job.Workdir(), cfg.Artifacts.ManifestFile)
	m, err := manifest.Open(cfg, manifestPath)
	if err != nil {
		return fmt.Errorf("opening manifest for job %s: %w", distillJobID, err)
	}
	defer m.Close()

	outputPath := filepath.Join(job.Workdir(), "success_pattern_proposal.md")

	proposal, err := membank.DistillSuccessPatterns(membank.JobMetadata{
		JobID:    distillJobID,
		TaskName: distillTaskName,
	}, m, outputPath)
	if err != nil {
		return fmt.Errorf("distilling success pattern: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(proposal, "\n"))
	log.Info("distillation written", "job_id", distillJobID, "path", outputPath)
	return nil
}
