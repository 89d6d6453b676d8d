// Package errorkind defines the error taxonomy used across the step
// runner: ConfigError, WorkspaceError, StepRunError, ValidationFailure,
// ManifestIOError, and the terminal StepExecutionError.
package errorkind

import (
	"errors"
	"fmt"
)

// Kind identifies which taxonomy bucket an error belongs to.
type Kind string

const (
	Config           Kind = "config_error"
	Workspace        Kind = "workspace_error"
	StepRun          Kind = "step_run_error"
	Validation       Kind = "validation_failure"
	ManifestIO       Kind = "manifest_io_error"
	StepExecution    Kind = "step_execution_error"
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ConfigErrorf builds a ConfigError with a formatted message.
func ConfigErrorf(format string, args ...any) *Error {
	return New(Config, fmt.Sprintf(format, args...))
}

// WorkspaceErrorf builds a WorkspaceError with a formatted message.
func WorkspaceErrorf(format string, args ...any) *Error {
	return New(Workspace, fmt.Sprintf(format, args...))
}

// ManifestIOErrorf builds a ManifestIOError with a formatted message.
func ManifestIOErrorf(format string, args ...any) *Error {
	return New(ManifestIO, fmt.Sprintf(format, args...))
}

// StepExecutionErrorInfo describes a terminal step failure after retries are
// exhausted. It carries the originating kind (StepRun or Validation).
type StepExecutionErrorInfo struct {
	StepID       string
	OriginKind   Kind
	Attempts     int
	RetriesMax   int
	Underlying   error
}

func NewStepExecutionError(info StepExecutionErrorInfo) *Error {
	return &Error{
		Kind: StepExecution,
		Message: fmt.Sprintf(
			"step %s failed after %d/%d attempts (origin=%s)",
			info.StepID, info.Attempts, info.RetriesMax, info.OriginKind,
		),
		Cause: info.Underlying,
	}
}
