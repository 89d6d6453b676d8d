package cmd

import (
	"github.com/agentkiln/stepforge/internal/engine"
	"github.com/agentkiln/stepforge/internal/runlog"
)

// consoleReporter logs engine progress events through the CLI's
// structured logger. It is the only engine.Reporter this CLI wires;
// a headless caller of internal/engine directly would use
// engine.NoOpReporter instead.
type consoleReporter struct {
	log *runlog.Logger
}

func newConsoleReporter(log *runlog.Logger) *consoleReporter {
	return &consoleReporter{log: log}
}

func (r *consoleReporter) StepStarted(stepID, name string) {
	r.log.Info("step started", "step_id", stepID, "name", name)
}

func (r *consoleReporter) StepAttempt(stepID string, attempt, maxAttempts int) {
	r.log.Info("step attempt", "step_id", stepID, "attempt", attempt, "max_attempts", maxAttempts)
}

func (r *consoleReporter) StepSkipped(stepID string) {
	r.log.Info("step skipped, reusing validated outputs", "step_id", stepID)
}

func (r *consoleReporter) StepValidated(stepID string) {
	r.log.Info("step validated", "step_id", stepID)
}

func (r *consoleReporter) StepFailed(stepID string, err error) {
	r.log.Error("step failed", "step_id", stepID, "error", err)
}

func (r *consoleReporter) RunFinished(summary engine.Summary) {
	r.log.Info("run finished", "success", summary.Success, "steps_total", summary.StepsTotal)
}
