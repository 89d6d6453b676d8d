package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/membank"
	"github.com/agentkiln/stepforge/internal/step"
	"github.com/agentkiln/stepforge/internal/steps"
	"github.com/agentkiln/stepforge/internal/taskdecl"
)

// buildRegistry assembles the step.Registry with every built-in type
// this CLI ships with. The summarize built-in only ever uses the
// Anthropic backend for a step that declares config.use_llm: true,
// and only when an API key is configured; every other step, and any
// use_llm step whose Anthropic call errors, runs the rule-based
// summarizer instead.
func buildRegistry(cfg *config.Config, bank *membank.Bank) *step.Registry {
	r := step.NewRegistry()
	r.Register(steps.LoadInputType, steps.NewLoadInput)
	r.Register(steps.StubType, steps.NewStub)
	r.Register(steps.ShellCommandType, steps.NewShellCommand)
	r.Register(steps.FunctionType, steps.NewFunctionRegistry(nil))

	var anthropicSummarizer steps.Summarizer
	if cfg.AnthropicAPIKey != "" {
		anthropicSummarizer = steps.NewAnthropicSummarizer(cfg.AnthropicAPIKey)
	}
	r.Register(steps.SummarizeType, steps.NewSummarize(anthropicSummarizer, bank.MemoryContext))

	return r
}

// loadSteps parses a task declaration file and constructs its steps
// against registry, wrapping any step whose declaration carries a
// json_schema validator block.
func loadSteps(taskPath string, registry *step.Registry) (*taskdecl.TaskFile, []step.Step, error) {
	tf, err := taskdecl.ParseTaskFile(taskPath)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing task file: %w", err)
	}

	taskDir := filepath.Dir(taskPath)

	built := make([]step.Step, 0, len(tf.Steps))
	for _, decl := range tf.Steps {
		s, err := registry.Build(step.Descriptor{
			ID:      decl.ID,
			Name:    decl.Name,
			Type:    decl.Type,
			Inputs:  decl.Inputs,
			Outputs: decl.Outputs,
			Config:  decl.Config,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("building step %s: %w", decl.ID, err)
		}

		if decl.Validator != nil && decl.Validator.Kind == "json_schema" && len(decl.Outputs) > 0 {
			schemaPath := decl.Validator.Schema
			if !filepath.IsAbs(schemaPath) {
				schemaPath = filepath.Join(taskDir, schemaPath)
			}
			s = step.WithJSONSchemaValidator(s, decl.Outputs[0], schemaPath, decl.Validator.Strict)
		}

		built = append(built, s)
	}

	return tf, built, nil
}
