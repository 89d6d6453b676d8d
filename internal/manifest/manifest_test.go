package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentkiln/stepforge/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestAddGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	artifactPath := filepath.Join(dir, "out.txt")
	os.WriteFile(artifactPath, []byte("hello"), 0o644)

	m, err := Open(testConfig(), manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	err = m.Add(AddArtifactInput{
		Key:          "out",
		Path:         artifactPath,
		ProducerStep: "step-1",
		InputsUsed:   []string{},
		Now:          time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, ok := m.Get("out")
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if rec.ProducerStep != "step-1" {
		t.Errorf("expected producer_step step-1, got %s", rec.ProducerStep)
	}
	if rec.SHA256 == "" {
		t.Errorf("expected sha256 to be populated by default config")
	}
}

func TestIsValidatedAndMarkValidated(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	artifactPath := filepath.Join(dir, "out.txt")
	os.WriteFile(artifactPath, []byte("hello"), 0o644)

	m, err := Open(testConfig(), manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Add(AddArtifactInput{Key: "out", Path: artifactPath, ProducerStep: "s1", Now: time.Now()})

	if m.IsValidated("out") {
		t.Errorf("expected not validated right after registration")
	}

	if err := m.MarkValidated("out"); err != nil {
		t.Fatal(err)
	}
	if !m.IsValidated("out") {
		t.Errorf("expected validated after MarkValidated")
	}
}

func TestShouldReuseRequiresValidatedFileAndHash(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	artifactPath := filepath.Join(dir, "out.txt")
	os.WriteFile(artifactPath, []byte("hello"), 0o644)

	m, err := Open(testConfig(), manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Add(AddArtifactInput{Key: "out", Path: artifactPath, ProducerStep: "s1", Now: time.Now()})

	if m.ShouldReuse("out") {
		t.Errorf("expected no reuse before validation")
	}

	m.MarkValidated("out")
	if !m.ShouldReuse("out") {
		t.Errorf("expected reuse after validation with matching hash")
	}

	os.WriteFile(artifactPath, []byte("tampered"), 0o644)
	if m.ShouldReuse("out") {
		t.Errorf("expected no reuse once the file content diverges from the stored hash")
	}
}

func TestShouldReuseFalseWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	artifactPath := filepath.Join(dir, "out.txt")
	os.WriteFile(artifactPath, []byte("hello"), 0o644)

	m, err := Open(testConfig(), manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Add(AddArtifactInput{Key: "out", Path: artifactPath, ProducerStep: "s1", Now: time.Now()})
	m.MarkValidated("out")
	os.Remove(artifactPath)

	if m.ShouldReuse("out") {
		t.Errorf("expected no reuse once the artifact file is gone")
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	artifactPath := filepath.Join(dir, "out.txt")
	os.WriteFile(artifactPath, []byte("hello"), 0o644)

	cfg := testConfig()
	m1, err := Open(cfg, manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	m1.Add(AddArtifactInput{Key: "out", Path: artifactPath, ProducerStep: "s1", Now: time.Now()})
	if err := m1.Close(); err != nil {
		t.Fatal(err)
	}

	m2, err := Open(cfg, manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()

	rec, ok := m2.Get("out")
	if !ok || rec.ProducerStep != "s1" {
		t.Errorf("expected reloaded manifest to contain prior artifact")
	}
}

func TestOpenFailsWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")

	cfg := testConfig()
	m1, err := Open(cfg, manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m1.Close()

	if _, err := Open(cfg, manifestPath); err == nil {
		t.Errorf("expected second Open to fail while the first holds the lock")
	}
}

func TestAllReturnsIndependentCopy(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	artifactPath := filepath.Join(dir, "out.txt")
	os.WriteFile(artifactPath, []byte("hello"), 0o644)

	m, err := Open(testConfig(), manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Add(AddArtifactInput{Key: "out", Path: artifactPath, ProducerStep: "s1", Now: time.Now()})

	all := m.All()
	delete(all, "out")
	if _, ok := m.Get("out"); !ok {
		t.Errorf("mutating the result of All must not affect the manifest")
	}
}
