package step

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type alwaysValidStep struct {
	Base
}

func (s *alwaysValidStep) Run(ctx context.Context, sc *Context) (Result, error) {
	return Result{}, nil
}

func writeSchemaFixtures(t *testing.T, sc *Context) (outputKey, schemaPath string) {
	t.Helper()
	schemaPath = filepath.Join(t.TempDir(), "summary.schema.json")
	os.WriteFile(schemaPath, []byte(`{
		"type": "object",
		"required": ["summary"],
		"properties": {"summary": {"type": "string"}}
	}`), 0o644)
	return "summary", schemaPath
}

func TestWithJSONSchemaValidatorPassesValidArtifact(t *testing.T) {
	sc := newTestContext(t)
	outputKey, schemaPath := writeSchemaFixtures(t, sc)
	os.WriteFile(sc.Job.ArtifactPath(outputKey), []byte(`{"summary": "ok"}`), 0o644)

	s := WithJSONSchemaValidator(&alwaysValidStep{Base: Base{StepID: "s1"}}, outputKey, schemaPath, true)
	ok, err := s.Validate(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("expected schema-valid artifact to pass")
	}
}

func TestWithJSONSchemaValidatorFailsOnMissingField(t *testing.T) {
	sc := newTestContext(t)
	outputKey, schemaPath := writeSchemaFixtures(t, sc)
	os.WriteFile(sc.Job.ArtifactPath(outputKey), []byte(`{"other": "ok"}`), 0o644)

	s := WithJSONSchemaValidator(&alwaysValidStep{Base: Base{StepID: "s1"}}, outputKey, schemaPath, true)
	ok, err := s.Validate(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected schema violation to fail validation")
	}
}
