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

// FunctionType is the task-declaration type name for Function.
const FunctionType = "function"

// Func is an in-process callable a Function step invokes. It takes
// the step context and the step's own config block, and returns a
// JSON-serializable result plus an error.
type Func func(ctx context.Context, sc *step.Context, cfg map[string]any) (any, error)

type functionArtifact struct {
	Function string `json:"function"`
	Result   any    `json:"result"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Function dispatches to a named, pre-registered Go function, the
// in-process analogue of ShellCommand for work that does not warrant
// a subprocess.
type Function struct {
	step.Base
	FunctionName string
	fn           Func
	Config       map[string]any
}

// NewFunctionRegistry returns a step.Constructor keyed to a fixed
// table of named functions, looked up by the step's "function_name"
// config key.
func NewFunctionRegistry(table map[string]Func) step.Constructor {
	return func(desc step.Descriptor) (step.Step, error) {
		name, _ := desc.Config["function_name"].(string)
		if name == "" {
			return nil, errorkind.ConfigErrorf("function step %s: function_name not specified in config", desc.ID)
		}
		fn, ok := table[name]
		if !ok {
			return nil, errorkind.ConfigErrorf("function step %s: unknown function %q", desc.ID, name)
		}
		if len(desc.Outputs) != 1 {
			return nil, errorkind.ConfigErrorf("function step %s: exactly one output is required", desc.ID)
		}
		return &Function{
			Base:         step.Base{StepID: desc.ID, StepName: desc.Name, StepInputs: desc.Inputs, StepOutputs: desc.Outputs},
			FunctionName: name,
			fn:           fn,
			Config:       desc.Config,
		}, nil
	}
}

func (s *Function) Run(ctx context.Context, sc *step.Context) (step.Result, error) {
	result, fnErr := s.fn(ctx, sc, s.Config)

	doc := functionArtifact{Function: s.FunctionName, Result: result, Success: fnErr == nil}
	if fnErr != nil {
		doc.Error = fnErr.Error()
	}

	outPath := s.OutputPath(sc, s.StepOutputs[0])
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "encoding function artifact", err)
	}
	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "writing function artifact", err)
	}

	if fnErr != nil {
		return step.Result{Status: "failed"}, errorkind.Wrap(errorkind.StepRun, fmt.Sprintf("function %s failed", s.FunctionName), fnErr)
	}
	return step.Result{Status: "success"}, nil
}

func (s *Function) Validate(ctx context.Context, sc *step.Context) (bool, error) {
	outPath := s.OutputPath(sc, s.StepOutputs[0])
	if !validate.FileExists(outPath) {
		return false, nil
	}
	data, err := os.ReadFile(outPath) // #nosec G304 - our own just-written artifact path
	if err != nil {
		return false, nil
	}
	var doc functionArtifact
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, nil
	}
	return doc.Success, nil
}
