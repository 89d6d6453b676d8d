package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/step"
	"github.com/agentkiln/stepforge/internal/validate"
)

// StubType is the task-declaration type name for Stub.
const StubType = "stub"

type stubArtifact struct {
	StepID  string `json:"step_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Stub writes a placeholder artifact for each declared output,
// without doing any real work. It exists so a task declaration can
// exercise the engine's state machine and manifest wiring before its
// real steps are written.
type Stub struct {
	step.Base
}

// NewStub builds a Stub from its descriptor.
func NewStub(desc step.Descriptor) (step.Step, error) {
	return &Stub{Base: step.Base{StepID: desc.ID, StepName: desc.Name, StepInputs: desc.Inputs, StepOutputs: desc.Outputs}}, nil
}

func (s *Stub) Run(ctx context.Context, sc *step.Context) (step.Result, error) {
	for _, outputKey := range s.StepOutputs {
		outPath := s.OutputPath(sc, outputKey)
		doc := stubArtifact{
			StepID:  s.StepID,
			Status:  "stub",
			Message: fmt.Sprintf("Stub output for %s", outputKey),
		}
		buf, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return step.Result{}, errorkind.Wrap(errorkind.StepRun, "encoding stub artifact", err)
		}
		if err := os.WriteFile(outPath, buf, 0o644); err != nil {
			return step.Result{}, errorkind.Wrap(errorkind.StepRun, "writing stub artifact", err)
		}
	}
	return step.Result{Status: "success", Detail: map[string]any{"mode": "stub"}}, nil
}

func (s *Stub) Validate(ctx context.Context, sc *step.Context) (bool, error) {
	for _, outputKey := range s.StepOutputs {
		if !validate.FileExists(s.OutputPath(sc, outputKey)) {
			return false, nil
		}
	}
	return true, nil
}
