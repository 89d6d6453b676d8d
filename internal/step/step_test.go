package step

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/jobspace"
	"github.com/agentkiln/stepforge/internal/manifest"
	"github.com/agentkiln/stepforge/internal/membank"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.JobRootTemplate = filepath.Join(root, "jobs", "{job_id}")
	cfg.MemoryBank.Root = filepath.Join(root, "memory-bank")

	j, err := jobspace.New(&cfg, "demo", nil, "job-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := j.SetupWorkdir(context.Background()); err != nil {
		t.Fatal(err)
	}

	m, err := manifest.Open(&cfg, filepath.Join(j.Workdir(), "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })

	return NewContext(j, m, membank.Open(&cfg))
}

func TestBaseShouldSkipTrueWithNoOutputs(t *testing.T) {
	b := &Base{StepID: "s1"}
	sc := newTestContext(t)
	if !b.ShouldSkip(sc) {
		t.Errorf("expected a step with no declared outputs to be skipped vacuously")
	}
}

func TestBaseShouldSkipTrueWhenAllOutputsReusable(t *testing.T) {
	sc := newTestContext(t)
	outPath := sc.Job.ArtifactPath("out")
	os.WriteFile(outPath, []byte("data"), 0o644)

	sc.Manifest.Add(manifest.AddArtifactInput{Key: "out", Path: outPath, ProducerStep: "s1", Now: time.Now()})
	sc.Manifest.MarkValidated("out")

	b := &Base{StepID: "s1", StepOutputs: []string{"out"}}
	if !b.ShouldSkip(sc) {
		t.Errorf("expected skip when all outputs are validated and reusable")
	}
}

func TestBaseShouldSkipFalseWhenOneOutputUnvalidated(t *testing.T) {
	sc := newTestContext(t)
	outPath := sc.Job.ArtifactPath("out")
	os.WriteFile(outPath, []byte("data"), 0o644)
	sc.Manifest.Add(manifest.AddArtifactInput{Key: "out", Path: outPath, ProducerStep: "s1", Now: time.Now()})

	b := &Base{StepID: "s1", StepOutputs: []string{"out", "missing"}}
	if b.ShouldSkip(sc) {
		t.Errorf("expected no skip when any output is not reusable")
	}
}

func TestBaseInputPathsResolvesFromManifest(t *testing.T) {
	sc := newTestContext(t)
	inPath := sc.Job.ArtifactPath("in")
	os.WriteFile(inPath, []byte("data"), 0o644)
	sc.Manifest.Add(manifest.AddArtifactInput{Key: "in", Path: inPath, ProducerStep: "prior", Now: time.Now()})

	b := &Base{StepID: "s2", StepInputs: []string{"in", "absent"}}
	paths := b.InputPaths(sc)
	if paths["in"] != inPath {
		t.Errorf("expected resolved input path, got %q", paths["in"])
	}
	if _, ok := paths["absent"]; ok {
		t.Errorf("expected unregistered input key to be omitted")
	}
}

func TestBaseOutputPathUsesJobArtifactsDir(t *testing.T) {
	sc := newTestContext(t)
	b := &Base{StepID: "s3"}
	if got, want := b.OutputPath(sc, "result"), sc.Job.ArtifactPath("result"); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestBaseOnFailDescribesFailure(t *testing.T) {
	sc := newTestContext(t)
	b := &Base{StepID: "s4"}
	info := b.OnFail(sc, errors.New("boom"))
	if info.StepID != "s4" || info.Message != "boom" {
		t.Errorf("unexpected failure info: %+v", info)
	}
}

func TestRegistryBuildUnknownType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Build(Descriptor{Type: "nope"}); err == nil {
		t.Errorf("expected error for unregistered step type")
	}
}

func TestRegistryBuildDispatchesToConstructor(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func(desc Descriptor) (Step, error) {
		return &stubStep{Base: Base{StepID: desc.ID}}, nil
	})

	s, err := r.Build(Descriptor{ID: "s1", Type: "stub"})
	if err != nil {
		t.Fatal(err)
	}
	if s.ID() != "s1" {
		t.Errorf("expected constructed step to carry descriptor id")
	}
}

type stubStep struct {
	Base
}

func (s *stubStep) Run(ctx context.Context, sc *Context) (Result, error) {
	return Result{Status: "success"}, nil
}
