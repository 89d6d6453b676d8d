package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Runtime.RetriesMax != 3 {
		t.Errorf("expected default retries_max 3, got %d", cfg.Runtime.RetriesMax)
	}
	if !cfg.Runtime.StopOnFail {
		t.Errorf("expected default stop_on_fail true")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("expected missing config file to be tolerated, got %v", err)
	}
	if cfg.Artifacts.ManifestFile != "manifest.json" {
		t.Errorf("expected default manifest file, got %q", cfg.Artifacts.ManifestFile)
	}
}

func TestLoadOverridesMergeOnTopOfDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steprunner.yaml")
	doc := `
runtime:
  retries_max: 5
  stop_on_fail: false
paths:
  work_root: ./custom-work
  job_root_template: ./custom-work/{job_id}
  logs_dir: logs
  artifacts_dir: artifacts
  cache_dir: cache
memory_bank:
  root: ./custom-memory-bank
  files:
    project_brief: projectbrief.md
    system_patterns: systemPatterns.md
    policies: policies.md
    glossary: glossary.yaml
    preferences: preferences.yaml
    progress: progress.md
    active_context: activeContext.md
artifacts:
  manifest_file: manifest.json
  include_hashes: true
  include_tool_versions: false
  reuse_if_validated: true
validation:
  jsonschema_strict: false
  fail_fast: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Runtime.RetriesMax != 5 {
		t.Errorf("expected overridden retries_max 5, got %d", cfg.Runtime.RetriesMax)
	}
	if cfg.Runtime.StopOnFail {
		t.Errorf("expected overridden stop_on_fail false")
	}
	if cfg.Paths.WorkRoot != "./custom-work" {
		t.Errorf("expected overridden work_root, got %q", cfg.Paths.WorkRoot)
	}
	if cfg.Validation.JSONSchemaStrict {
		t.Errorf("expected overridden jsonschema_strict false")
	}
	if cfg.Artifacts.IncludeToolVersions {
		t.Errorf("expected overridden include_tool_versions false")
	}
}

func TestLoadRejectsInvalidRetriesMax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steprunner.yaml")
	os.WriteFile(path, []byte("runtime:\n  retries_max: 0\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Errorf("expected error for retries_max < 1")
	}
}

func TestLoadRejectsJobRootTemplateWithoutPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steprunner.yaml")
	os.WriteFile(path, []byte("paths:\n  job_root_template: ./work/static\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Errorf("expected error for job_root_template missing {job_id}")
	}
}

func TestLoadRejectsMissingMemoryBankFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steprunner.yaml")
	os.WriteFile(path, []byte("memory_bank:\n  files:\n    project_brief: projectbrief.md\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Errorf("expected error for memory_bank.files missing required keys")
	}
}

func TestLoadReadsAnthropicAPIKeyFromEnv(t *testing.T) {
	t.Setenv(anthropicAPIKeyEnv, "sk-test-123")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AnthropicAPIKey != "sk-test-123" {
		t.Errorf("expected API key from env, got %q", cfg.AnthropicAPIKey)
	}
}

func TestGetIsStableAcrossCalls(t *testing.T) {
	c1, err := Get()
	if err != nil {
		t.Fatal(err)
	}
	c2, err := Get()
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Errorf("expected Get() to return the same singleton pointer across calls")
	}
}
