// Package step defines the Step abstraction: the unit of work the
// engine drives through its retry/validate loop, plus the context a
// step runs against and a constructor registry for wiring task
// declarations to concrete Step implementations.
package step

import (
	"context"

	"github.com/agentkiln/stepforge/internal/jobspace"
	"github.com/agentkiln/stepforge/internal/manifest"
	"github.com/agentkiln/stepforge/internal/membank"
)

// Context is passed to every step method. StepData is free-form
// storage a step's Run can use to pass information to its own
// Validate call without persisting it to the manifest.
type Context struct {
	Job        *jobspace.Job
	Manifest   *manifest.Manifest
	MemoryBank *membank.Bank
	StepData   map[string]any
}

// NewContext builds a fresh Context for a job run.
func NewContext(job *jobspace.Job, m *manifest.Manifest, bank *membank.Bank) *Context {
	return &Context{Job: job, Manifest: m, MemoryBank: bank, StepData: map[string]any{}}
}

// Result is what Run returns on success; the engine discards it, since
// the state machine only cares about the error return and the
// subsequent Validate call.
type Result struct {
	Status string
	Detail map[string]any
}

// FailureInfo is what OnFail returns: a human-actionable description
// of why a step did not validate or errored out.
type FailureInfo struct {
	StepID     string
	ErrorType  string
	Message    string
	Suggestion string
}

// Descriptor is the declared shape of a step, independent of its
// concrete type: its id, display name, declared inputs/outputs, and
// the raw configuration block a constructor uses to build it.
type Descriptor struct {
	ID     string
	Name   string
	Type   string
	Inputs []string
	Outputs []string
	Config map[string]any
}

// Step is the interface every step implementation satisfies. There is
// no base class: Go favors composition, so built-ins embed a Base that
// supplies the common should_skip/get_input_paths/get_output_path/on_fail
// behavior, and override Run and, where needed, Validate.
type Step interface {
	ID() string
	Name() string
	Inputs() []string
	Outputs() []string

	Run(ctx context.Context, sc *Context) (Result, error)
	Validate(ctx context.Context, sc *Context) (bool, error)
	ShouldSkip(sc *Context) bool
	OnFail(sc *Context, stepErr error) FailureInfo
	InputPaths(sc *Context) map[string]string
	OutputPath(sc *Context, outputKey string) string
}

// Base implements the default Step behaviors shared by every built-in
// step: skip-on-reuse, input/output path resolution, and a generic
// failure report. Concrete steps embed Base and implement Run (and
// Validate, when the default "always true" gate is insufficient).
type Base struct {
	StepID      string
	StepName    string
	StepInputs  []string
	StepOutputs []string
}

func (b *Base) ID() string       { return b.StepID }
func (b *Base) Name() string     { return b.StepName }
func (b *Base) Inputs() []string { return b.StepInputs }
func (b *Base) Outputs() []string { return b.StepOutputs }

// Validate is the default gate: a step with no further checks passes.
// Built-ins that need real validation (schema, content checks)
// override this.
func (b *Base) Validate(ctx context.Context, sc *Context) (bool, error) {
	return true, nil
}

// ShouldSkip reports whether every declared output can be reused from
// a prior validated run, which is the deterministic-replay shortcut. A
// step declaring zero outputs has nothing to fail reuse on, so the
// loop falls through vacuously true: it is skipped on every run.
func (b *Base) ShouldSkip(sc *Context) bool {
	for _, key := range b.StepOutputs {
		if !sc.Manifest.ShouldReuse(key) {
			return false
		}
	}
	return true
}

// OnFail builds the generic failure description recorded for a step
// that exhausted its retries.
func (b *Base) OnFail(sc *Context, stepErr error) FailureInfo {
	return FailureInfo{
		StepID:     b.StepID,
		ErrorType:  "step_execution_error",
		Message:    stepErr.Error(),
		Suggestion: "Check logs for details",
	}
}

// InputPaths resolves each declared input key to its artifact path,
// as currently recorded in the manifest. A key with no manifest
// entry yet is simply omitted.
func (b *Base) InputPaths(sc *Context) map[string]string {
	paths := map[string]string{}
	for _, key := range b.StepInputs {
		if rec, ok := sc.Manifest.Get(key); ok {
			paths[key] = rec.Path
		}
	}
	return paths
}

// OutputPath resolves an output key to where its artifact file lives
// within the job's artifacts directory.
func (b *Base) OutputPath(sc *Context, outputKey string) string {
	return sc.Job.ArtifactPath(outputKey)
}
