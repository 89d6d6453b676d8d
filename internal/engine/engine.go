// Package engine drives the retry/validate loop (the runner) that
// turns a declared list of steps into a sequence of attempts, manifest
// mutations, and either a validated artifact set or a failure report.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/hashio"
	"github.com/agentkiln/stepforge/internal/jobspace"
	"github.com/agentkiln/stepforge/internal/manifest"
	"github.com/agentkiln/stepforge/internal/membank"
	"github.com/agentkiln/stepforge/internal/step"
	"github.com/agentkiln/stepforge/internal/telemetry"
)

// Status is a step's terminal state for a single run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSkipped    Status = "skipped"
	StatusValidated  Status = "validated"
	StatusFailed     Status = "failed"
)

// StepOutcome records how one step resolved.
type StepOutcome struct {
	StepID   string `json:"step_id"`
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`
}

// Summary is the execution_summary.json document written at the end
// of a run.
type Summary struct {
	JobID         string        `json:"job_id"`
	StepsTotal    int           `json:"steps_total"`
	StepsExecuted int           `json:"steps_executed"`
	StepsSkipped  int           `json:"steps_skipped"`
	StepsFailed   int           `json:"steps_failed"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	FailedStep    string        `json:"failed_step,omitempty"`
	Outcomes      []StepOutcome `json:"outcomes"`
}

// Reporter observes engine progress. The CLI wires a console
// implementation that logs each event; tests and headless runs use
// NoOpReporter.
type Reporter interface {
	StepStarted(stepID, name string)
	StepAttempt(stepID string, attempt, maxAttempts int)
	StepSkipped(stepID string)
	StepValidated(stepID string)
	StepFailed(stepID string, err error)
	RunFinished(summary Summary)
}

// NoOpReporter discards every event.
type NoOpReporter struct{}

func (NoOpReporter) StepStarted(string, string)          {}
func (NoOpReporter) StepAttempt(string, int, int)        {}
func (NoOpReporter) StepSkipped(string)                  {}
func (NoOpReporter) StepValidated(string)                {}
func (NoOpReporter) StepFailed(string, error)             {}
func (NoOpReporter) RunFinished(Summary)                 {}

// Runner executes a fixed list of steps against a single job's
// workspace, manifest, and memory bank, implementing the
// pending -> (skipped | attempting(n) -> validated | failed) state
// machine for each step in order.
type Runner struct {
	cfg      *config.Config
	job      *jobspace.Job
	manifest *manifest.Manifest
	bank     *membank.Bank
	ctx      *step.Context
	reporter Reporter
}

// New builds a Runner, opening the job's manifest and resetting the
// memory bank's active context (the short-term memory reset that
// happens at the start of every job).
func New(cfg *config.Config, job *jobspace.Job, reporter Reporter) (*Runner, error) {
	if reporter == nil {
		reporter = NoOpReporter{}
	}

	manifestPath := filepath.Join(job.Workdir(), cfg.Artifacts.ManifestFile)
	m, err := manifest.Open(cfg, manifestPath)
	if err != nil {
		return nil, err
	}

	bank := membank.Open(cfg)
	if err := bank.ResetActiveContext(); err != nil {
		_ = m.Close()
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		job:      job,
		manifest: m,
		bank:     bank,
		ctx:      step.NewContext(job, m, bank),
		reporter: reporter,
	}, nil
}

// Manifest exposes the open manifest, e.g. for distillation after a run.
func (r *Runner) Manifest() *manifest.Manifest { return r.manifest }

// Close releases the manifest's exclusive lock.
func (r *Runner) Close() error { return r.manifest.Close() }

// RunAll executes every step in order, honoring stop_on_fail, and
// writes execution_summary.json to the job workdir before returning.
func (r *Runner) RunAll(ctx context.Context, steps []step.Step) (Summary, error) {
	summary := Summary{JobID: r.job.ID, StepsTotal: len(steps), Success: true, Outcomes: make([]StepOutcome, 0, len(steps))}

	for _, s := range steps {
		r.reporter.StepStarted(s.ID(), s.Name())
		telemetry.AddBreadcrumb("step", fmt.Sprintf("%s starting", s.ID()))

		if s.ShouldSkip(r.ctx) {
			summary.StepsSkipped++
			summary.Outcomes = append(summary.Outcomes, StepOutcome{StepID: s.ID(), Status: StatusSkipped})
			r.reporter.StepSkipped(s.ID())
			continue
		}

		attempts, stepErr := r.executeWithRetry(ctx, s)
		if stepErr != nil {
			summary.StepsFailed++
			summary.Success = false
			summary.Error = stepErr.Error()
			summary.FailedStep = s.ID()
			summary.Outcomes = append(summary.Outcomes, StepOutcome{StepID: s.ID(), Status: StatusFailed, Attempts: attempts})
			r.reporter.StepFailed(s.ID(), stepErr)
			telemetry.CaptureError(stepErr)

			if r.cfg.Runtime.StopOnFail {
				break
			}
			continue
		}

		summary.StepsExecuted++
		summary.Outcomes = append(summary.Outcomes, StepOutcome{StepID: s.ID(), Status: StatusValidated, Attempts: attempts})
		r.reporter.StepValidated(s.ID())
	}

	if err := hashio.WriteJSON(filepath.Join(r.job.Workdir(), "execution_summary.json"), summary, 0o644); err != nil {
		return summary, err
	}
	r.reporter.RunFinished(summary)
	return summary, nil
}

// executeWithRetry runs s up to retries_max times, registering its
// outputs in the manifest (unvalidated) after each run and promoting
// them to validated only once Validate passes. The manifest mutation
// order is always register -> validate -> mark_validated, so a crash
// between any two steps leaves the manifest in a legible state.
func (r *Runner) executeWithRetry(ctx context.Context, s step.Step) (int, error) {
	maxAttempts := r.cfg.Runtime.RetriesMax
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		r.reporter.StepAttempt(s.ID(), attempt, maxAttempts)

		result, runErr := s.Run(ctx, r.ctx)
		if runErr != nil {
			lastErr = runErr
			if attempt >= maxAttempts {
				r.writeFailureReport(s, attempt, runErr)
				return attempt, errorkind.NewStepExecutionError(errorkind.StepExecutionErrorInfo{
					StepID: s.ID(), OriginKind: errorkind.StepRun, Attempts: attempt, RetriesMax: maxAttempts, Underlying: runErr,
				})
			}
			continue
		}
		_ = result

		for _, outputKey := range s.Outputs() {
			outPath := s.OutputPath(r.ctx, outputKey)
			if _, statErr := os.Stat(outPath); statErr != nil {
				continue
			}
			if err := r.manifest.Add(manifest.AddArtifactInput{
				Key:          outputKey,
				Path:         outPath,
				ProducerStep: s.ID(),
				InputsUsed:   s.Inputs(),
				Now:          time.Now(),
			}); err != nil {
				return attempt, err
			}
		}

		valid, validateErr := s.Validate(ctx, r.ctx)
		if validateErr != nil {
			lastErr = validateErr
			valid = false
		}

		if !valid {
			if attempt >= maxAttempts {
				r.writeFailureReport(s, attempt, lastErr)
				return attempt, errorkind.NewStepExecutionError(errorkind.StepExecutionErrorInfo{
					StepID: s.ID(), OriginKind: errorkind.Validation, Attempts: attempt, RetriesMax: maxAttempts, Underlying: lastErr,
				})
			}
			continue
		}

		for _, outputKey := range s.Outputs() {
			if err := r.manifest.MarkValidated(outputKey); err != nil {
				return attempt, err
			}
		}
		return attempt, nil
	}

	return maxAttempts, errorkind.NewStepExecutionError(errorkind.StepExecutionErrorInfo{
		StepID: s.ID(), OriginKind: errorkind.StepRun, Attempts: maxAttempts, RetriesMax: maxAttempts, Underlying: lastErr,
	})
}

func (r *Runner) writeFailureReport(s step.Step, attempts int, stepErr error) {
	info := s.OnFail(r.ctx, orUnknownErr(stepErr))

	var b strings.Builder
	fmt.Fprintf(&b, "Step Execution Failure Report\n")
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 60))
	fmt.Fprintf(&b, "Failed Step: %s - %s\n", s.ID(), s.Name())
	fmt.Fprintf(&b, "Attempts: %d\n", attempts)
	fmt.Fprintf(&b, "Max Retries: %d\n", r.cfg.Runtime.RetriesMax)
	fmt.Fprintf(&b, "Error Type: %s\n", info.ErrorType)
	if stepErr != nil {
		fmt.Fprintf(&b, "Error Message: %s\n", info.Message)
	}
	fmt.Fprintf(&b, "\nRequired User Actions:\n")
	fmt.Fprintf(&b, "1. Check logs in: %s\n", r.job.LogPath(""))
	fmt.Fprintf(&b, "2. Review step configuration in the task declaration\n")
	fmt.Fprintf(&b, "3. Verify inputs: %s\n", strings.Join(s.Inputs(), ", "))
	fmt.Fprintf(&b, "4. Check dependencies/permissions\n")
	fmt.Fprintf(&b, "5. Review validation criteria\n")

	reportPath := filepath.Join(r.job.Workdir(), "failure_report.txt")
	_ = os.WriteFile(reportPath, []byte(b.String()), 0o644)
}

func orUnknownErr(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("validation failed")
}
