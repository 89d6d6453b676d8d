// Package steps provides the built-in step.Step implementations: the
// fixed repertoire of task-declaration-addressable steps the runner
// ships with, independent of any particular task.
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

// LoadInputType is the task-declaration type name for LoadInput.
const LoadInputType = "load-input"

// loadedInput is the artifact document a LoadInput step writes: the
// source file's content plus its length, so later steps never need
// to reopen the original input file.
type loadedInput struct {
	SourceFile string `json:"source_file"`
	Content    string `json:"content"`
	Length     int    `json:"length"`
}

// LoadInput reads a file named by its "input_file" config key and
// writes its content into the step's single declared output as a
// JSON artifact.
type LoadInput struct {
	step.Base
	InputFile string
}

// NewLoadInput builds a LoadInput from its descriptor.
func NewLoadInput(desc step.Descriptor) (step.Step, error) {
	inputFile, _ := desc.Config["input_file"].(string)
	if inputFile == "" {
		return nil, errorkind.ConfigErrorf("load-input step %s: input_file not specified in config", desc.ID)
	}
	if len(desc.Outputs) != 1 {
		return nil, errorkind.ConfigErrorf("load-input step %s: exactly one output is required", desc.ID)
	}
	return &LoadInput{
		Base:      step.Base{StepID: desc.ID, StepName: desc.Name, StepInputs: desc.Inputs, StepOutputs: desc.Outputs},
		InputFile: inputFile,
	}, nil
}

func (s *LoadInput) Run(ctx context.Context, sc *step.Context) (step.Result, error) {
	data, err := os.ReadFile(s.InputFile) // #nosec G304 - operator-declared task input
	if err != nil {
		if os.IsNotExist(err) {
			return step.Result{}, errorkind.Wrap(errorkind.StepRun, fmt.Sprintf("input file not found: %s", s.InputFile), err)
		}
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "reading input file", err)
	}

	content := string(data)
	outPath := s.OutputPath(sc, s.StepOutputs[0])

	doc := loadedInput{SourceFile: s.InputFile, Content: content, Length: len(content)}
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "encoding loaded input", err)
	}
	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "writing loaded input artifact", err)
	}

	return step.Result{Status: "success", Detail: map[string]any{"length": len(content)}}, nil
}

func (s *LoadInput) Validate(ctx context.Context, sc *step.Context) (bool, error) {
	outPath := s.OutputPath(sc, s.StepOutputs[0])
	if !validate.FileExists(outPath) {
		return false, nil
	}
	if !validate.FileSize(outPath, 10, 0) {
		return false, nil
	}
	return true, nil
}
