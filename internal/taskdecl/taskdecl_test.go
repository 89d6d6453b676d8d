package taskdecl

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTask = `
task_name: summarize-report
inputs:
  source: ./input.txt
steps:
  - id: load
    type: load-input
    outputs: [raw]
    config:
      input_file: ./input.txt
  - id: summarize
    type: summarize
    inputs: [raw]
    outputs: [summary]
    config:
      max_summary_length: 150
    validator:
      kind: json_schema
      schema: ./schemas/summary.schema.json
      strict: true
`

func TestParseTaskFileValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.task.yaml")
	os.WriteFile(path, []byte(sampleTask), 0o644)

	tf, err := ParseTaskFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tf.TaskName != "summarize-report" {
		t.Errorf("expected task name summarize-report, got %q", tf.TaskName)
	}
	if len(tf.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(tf.Steps))
	}
	if tf.Steps[1].Config["max_summary_length"] != uint64(150) && tf.Steps[1].Config["max_summary_length"] != 150 {
		t.Errorf("unexpected config value: %v", tf.Steps[1].Config["max_summary_length"])
	}
	if tf.Steps[1].Validator == nil || tf.Steps[1].Validator.Kind != "json_schema" {
		t.Errorf("expected step 2 to carry a json_schema validator, got %+v", tf.Steps[1].Validator)
	}
}

func TestParseTaskFileRejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.task.yaml")
	os.WriteFile(path, []byte("steps: []\n"), 0o644)

	if _, err := ParseTaskFile(path); err == nil {
		t.Errorf("expected error for missing name")
	}
}

func TestParseTaskFileRejectsStepWithoutID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.task.yaml")
	os.WriteFile(path, []byte("task_name: x\nsteps:\n  - type: stub\n"), 0o644)

	if _, err := ParseTaskFile(path); err == nil {
		t.Errorf("expected error for step missing id")
	}
}

func TestParseTaskFileRejectsNullBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.task.yaml")
	os.WriteFile(path, []byte("name: x\x00\nsteps: []\n"), 0o644)

	if _, err := ParseTaskFile(path); err == nil {
		t.Errorf("expected error for null bytes in task file")
	}
}

func TestDiscoverTasksFindsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "nested"), 0o755)
	os.WriteFile(filepath.Join(dir, "a.task.yaml"), []byte(sampleTask), 0o644)
	os.WriteFile(filepath.Join(dir, "nested", "b.task.yaml"), []byte(sampleTask), 0o644)
	os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644)

	tasks, err := DiscoverTasks(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 task files discovered, got %d: %v", len(tasks), tasks)
	}
}

func TestDiscoverTasksRejectsEmptyDir(t *testing.T) {
	if _, err := DiscoverTasks("", ""); err == nil {
		t.Errorf("expected error for empty dir")
	}
}
