// Package taskdecl parses the YAML task declarations that describe a
// job's ordered step list: each step's type, inputs, outputs, and
// free-form config block. This package is a CLI-layer concern only;
// the engine never imports it and knows nothing about YAML.
package taskdecl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentkiln/stepforge/internal/step"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
)

// maxTaskFileSizeBytes bounds the size of a task declaration file
// (1 MiB).
const maxTaskFileSizeBytes = 1 * 1024 * 1024

// ValidatorDeclaration configures a step's validator, currently only
// the json_schema kind is recognized by the CLI's wiring.
type ValidatorDeclaration struct {
	Kind   string `yaml:"kind"`
	Schema string `yaml:"schema"`
	Strict bool   `yaml:"strict"`
}

// StepDeclaration is one entry in a task file's steps list.
type StepDeclaration struct {
	ID        string                 `yaml:"id"`
	Name      string                 `yaml:"name"`
	Type      string                 `yaml:"type"`
	Inputs    []string               `yaml:"inputs"`
	Outputs   []string               `yaml:"outputs"`
	Config    map[string]any         `yaml:"config"`
	Validator *ValidatorDeclaration  `yaml:"validator"`
}

// TaskFile is the top-level shape of a task declaration YAML document.
type TaskFile struct {
	TaskName string            `yaml:"task_name"`
	Inputs   map[string]string `yaml:"inputs"`
	Steps    []StepDeclaration `yaml:"steps"`
}

func validateContent(data []byte) error {
	if len(data) > maxTaskFileSizeBytes {
		return fmt.Errorf("task file exceeds maximum size of %d bytes", maxTaskFileSizeBytes)
	}
	if bytes.Contains(data, []byte{0x00}) {
		return fmt.Errorf("task file contains null bytes (binary content not allowed)")
	}

	controlCount := 0
	for _, b := range data {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			controlCount++
		}
	}
	if controlCount > 10 {
		return fmt.Errorf("task file contains excessive control characters (%d found)", controlCount)
	}
	return nil
}

// ParseTaskFile reads and parses a single task declaration file. The
// path must already be validated by the caller (e.g. via
// DiscoverTasks) to be within an expected directory.
func ParseTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path validated by caller via DiscoverTasks
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	if err := validateContent(data); err != nil {
		return nil, err
	}

	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing task YAML: %w", err)
	}
	if tf.TaskName == "" {
		return nil, fmt.Errorf("task file %s: task_name is required", path)
	}
	for i, s := range tf.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("task file %s: step %d missing id", path, i)
		}
		if s.Type == "" {
			return nil, fmt.Errorf("task file %s: step %s missing type", path, s.ID)
		}
	}
	return &tf, nil
}

// Descriptors converts the parsed step declarations into
// step.Descriptor values, ready to be handed to a step.Registry.
// internal/engine never sees a TaskFile; it only ever sees
// step.Step values built from these descriptors.
func (tf *TaskFile) Descriptors() []step.Descriptor {
	out := make([]step.Descriptor, 0, len(tf.Steps))
	for _, s := range tf.Steps {
		out = append(out, step.Descriptor{
			ID:      s.ID,
			Name:    s.Name,
			Type:    s.Type,
			Inputs:  s.Inputs,
			Outputs: s.Outputs,
			Config:  s.Config,
		})
	}
	return out
}

// DiscoverTasks finds task declaration files under dir matching a
// doublestar glob pattern (default "**/*.task.yaml" when pattern is
// empty), rejecting symlinks and any path that would resolve outside
// dir.
func DiscoverTasks(dir, pattern string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("tasks directory cannot be empty")
	}
	if pattern == "" {
		pattern = "**/*.task.yaml"
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving tasks directory: %w", err)
	}

	fsys := os.DirFS(absDir)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing task files: %w", err)
	}

	var tasks []string
	for _, m := range matches {
		fullPath := filepath.Join(absDir, m)
		info, err := os.Lstat(fullPath)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if info.IsDir() {
			continue
		}

		absPath, err := filepath.Abs(fullPath)
		if err != nil {
			continue
		}
		relPath, err := filepath.Rel(absDir, absPath)
		if err != nil || len(relPath) >= 2 && relPath[:2] == ".." {
			continue
		}

		tasks = append(tasks, fullPath)
	}
	return tasks, nil
}
