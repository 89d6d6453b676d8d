package hashio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeFileHashDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := ComputeFileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ComputeFileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("expected stable hash, got %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestComputeFileHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	os.WriteFile(path, []byte("a"), 0o644)
	h1, _ := ComputeFileHash(path)

	os.WriteFile(path, []byte("b"), 0o644)
	h2, _ := ComputeFileHash(path)

	if h1 == h2 {
		t.Errorf("expected different hashes for different content")
	}
}

func TestShortInputFingerprintOrderIndependent(t *testing.T) {
	a := map[string]string{"foo": "1", "bar": "2"}
	b := map[string]string{"bar": "2", "foo": "1"}

	fa, err := ShortInputFingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := ShortInputFingerprint(b)
	if err != nil {
		t.Fatal(err)
	}
	if fa != fb {
		t.Errorf("expected map-order-independent fingerprint, got %s vs %s", fa, fb)
	}
	if len(fa) != 16 {
		t.Errorf("expected 16 hex chars (64 bits), got %d", len(fa))
	}
}

func TestShortInputFingerprintDiffersOnValue(t *testing.T) {
	a := map[string]string{"foo": "1"}
	b := map[string]string{"foo": "2"}

	fa, _ := ShortInputFingerprint(a)
	fb, _ := ShortInputFingerprint(b)
	if fa == fb {
		t.Errorf("expected different fingerprints for different values")
	}
}

func TestAtomicWriteFileAndReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "doc.json")

	type payload struct {
		Name string `json:"name"`
	}

	if err := WriteJSON(path, payload{Name: "job-1"}, 0o644); err != nil {
		t.Fatal(err)
	}

	var out payload
	found, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("expected file to be found")
	}
	if out.Name != "job-1" {
		t.Errorf("expected name job-1, got %q", out.Name)
	}
}

func TestReadJSONMissingFileTolerated(t *testing.T) {
	dir := t.TempDir()
	var out map[string]any
	found, err := ReadJSON(filepath.Join(dir, "absent.json"), &out)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if found {
		t.Errorf("expected found=false for missing file")
	}
}
