package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/step"
	"github.com/agentkiln/stepforge/internal/validate"
)

// ShellCommandType is the task-declaration type name for ShellCommand.
const ShellCommandType = "shell-command"

const defaultShellTimeout = 300 * time.Second

type shellResult struct {
	Command    string `json:"command"`
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Success    bool   `json:"success"`
}

// ShellCommand runs a declared shell command via the system shell,
// captures its stdout/stderr, and writes the combined result as its
// declared output artifact and to <step id>.log in the job's logs
// directory.
type ShellCommand struct {
	step.Base
	Command string
	Timeout time.Duration
}

// NewShellCommand builds a ShellCommand from its descriptor.
func NewShellCommand(desc step.Descriptor) (step.Step, error) {
	command, _ := desc.Config["command"].(string)
	if command == "" {
		return nil, errorkind.ConfigErrorf("shell-command step %s: command not specified in config", desc.ID)
	}
	if len(desc.Outputs) != 1 {
		return nil, errorkind.ConfigErrorf("shell-command step %s: exactly one output is required", desc.ID)
	}

	timeout := defaultShellTimeout
	var seconds int64
	switch v := desc.Config["timeout_seconds"].(type) {
	case int:
		seconds = int64(v)
	case int64:
		seconds = v
	case uint64:
		seconds = int64(v)
	}
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &ShellCommand{
		Base:    step.Base{StepID: desc.ID, StepName: desc.Name, StepInputs: desc.Inputs, StepOutputs: desc.Outputs},
		Command: command,
		Timeout: timeout,
	}, nil
}

func (s *ShellCommand) Run(ctx context.Context, sc *step.Context) (step.Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", s.Command) // #nosec G204 - operator-declared task command
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := shellResult{Command: s.Command, Stdout: stdout.String(), Stderr: stderr.String()}
	if runCtx.Err() != nil {
		result.ReturnCode = -1
		result.Stderr = fmt.Sprintf("timeout after %s", s.Timeout)
	} else if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ReturnCode = exitErr.ExitCode()
	} else if runErr != nil {
		result.ReturnCode = -1
		result.Stderr = runErr.Error()
	}
	result.Success = result.ReturnCode == 0 && runErr == nil

	logPath := sc.Job.LogPath(s.StepID + ".log")
	logText := fmt.Sprintf("Command: %s\nReturn code: %d\n\n--- STDOUT ---\n%s\n\n--- STDERR ---\n%s\n",
		result.Command, result.ReturnCode, result.Stdout, result.Stderr)
	if err := os.WriteFile(logPath, []byte(logText), 0o644); err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "writing shell command log", err)
	}

	outPath := s.OutputPath(sc, s.StepOutputs[0])
	buf, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "encoding shell command result", err)
	}
	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "writing shell command artifact", err)
	}

	if !result.Success {
		return step.Result{Status: "failed", Detail: map[string]any{"returncode": result.ReturnCode}},
			errorkind.New(errorkind.StepRun, fmt.Sprintf("command exited with code %d", result.ReturnCode))
	}
	return step.Result{Status: "success"}, nil
}

func (s *ShellCommand) Validate(ctx context.Context, sc *step.Context) (bool, error) {
	outPath := s.OutputPath(sc, s.StepOutputs[0])
	if !validate.FileExists(outPath) {
		return false, nil
	}
	data, err := os.ReadFile(outPath) // #nosec G304 - our own just-written artifact path
	if err != nil {
		return false, nil
	}
	var result shellResult
	if err := json.Unmarshal(data, &result); err != nil {
		return false, nil
	}
	return result.Success, nil
}
