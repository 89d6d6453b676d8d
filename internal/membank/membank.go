// Package membank implements the memory bank: an external, file-backed
// long-term memory that survives across jobs, plus the active context
// file that is reset at the start of every job (the runner's
// short-term memory).
package membank

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/goccy/go-yaml"
)

// Bank is a handle onto the memory bank root directory.
type Bank struct {
	root  string
	files map[string]string
}

// Open returns a Bank rooted at cfg.MemoryBank.Root.
func Open(cfg *config.Config) *Bank {
	return &Bank{root: cfg.MemoryBank.Root, files: cfg.MemoryBank.Files}
}

func (b *Bank) path(key string) string {
	return filepath.Join(b.root, b.files[key])
}

// ResetActiveContext truncates the active context file at the start of
// a job, implementing the short-term memory reset.
func (b *Bank) ResetActiveContext() error {
	path := b.path(config.MemFileActiveContext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errorkind.Wrap(errorkind.Workspace, "creating memory bank directory", err)
	}
	content := "# Active Context\n\n(Reset at job start)\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errorkind.Wrap(errorkind.Workspace, "resetting active context", err)
	}
	return nil
}

func (b *Bank) readText(key string) (string, error) {
	data, err := os.ReadFile(b.path(key)) // #nosec G304 - fixed, config-resolved path
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errorkind.Wrap(errorkind.Workspace, "reading memory bank file", err)
	}
	return string(data), nil
}

// ReadProjectBrief returns the project's constitution text, or "" if
// no brief has been written yet.
func (b *Bank) ReadProjectBrief() (string, error) { return b.readText(config.MemFileProjectBrief) }

// ReadSystemPatterns returns the accumulated success-pattern text.
func (b *Bank) ReadSystemPatterns() (string, error) { return b.readText(config.MemFileSystemPatterns) }

// ReadPolicies returns the invariant rules text.
func (b *Bank) ReadPolicies() (string, error) { return b.readText(config.MemFilePolicies) }

func (b *Bank) readYAMLMap(key string) (map[string]any, error) {
	data, err := os.ReadFile(b.path(key)) // #nosec G304 - fixed, config-resolved path
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, errorkind.Wrap(errorkind.Workspace, "reading memory bank file", err)
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errorkind.Wrap(errorkind.Workspace, "parsing memory bank YAML", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ReadGlossary returns the terminology glossary.
func (b *Bank) ReadGlossary() (map[string]any, error) { return b.readYAMLMap(config.MemFileGlossary) }

// ReadPreferences returns the formatting/style preferences.
func (b *Bank) ReadPreferences() (map[string]any, error) {
	return b.readYAMLMap(config.MemFilePreferences)
}

// AppendProgress appends an entry to the progress log, preceded by a
// blank line and followed by a newline.
func (b *Bank) AppendProgress(entry string) error {
	path := b.path(config.MemFileProgress)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errorkind.Wrap(errorkind.Workspace, "creating memory bank directory", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304
	if err != nil {
		return errorkind.Wrap(errorkind.Workspace, "opening progress log", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "\n%s\n", entry); err != nil {
		return errorkind.Wrap(errorkind.Workspace, "appending progress entry", err)
	}
	return nil
}

// MemoryContext concatenates the project brief, policies, and system
// patterns into the context string handed to memory-aware steps (the
// summarize built-in, in particular).
func (b *Bank) MemoryContext() (string, error) {
	var parts []string

	brief, err := b.ReadProjectBrief()
	if err != nil {
		return "", err
	}
	if brief != "" {
		parts = append(parts, "# Project Brief\n"+brief)
	}

	policies, err := b.ReadPolicies()
	if err != nil {
		return "", err
	}
	if policies != "" {
		parts = append(parts, "# Policies\n"+policies)
	}

	patterns, err := b.ReadSystemPatterns()
	if err != nil {
		return "", err
	}
	if patterns != "" {
		parts = append(parts, "# System Patterns\n"+patterns)
	}

	return strings.Join(parts, "\n\n"), nil
}
