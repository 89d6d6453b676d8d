package step

import (
	"context"

	"github.com/agentkiln/stepforge/internal/validate"
)

// schemaValidated wraps a Step with an additional JSON Schema check
// against one of its declared outputs, run after the wrapped Step's
// own Validate passes. Composition, not inheritance: task declarations
// that specify a validator block get one of these around whatever
// built-in step.Registry constructed.
type schemaValidated struct {
	Step
	outputKey  string
	schemaPath string
	strict     bool
}

// WithJSONSchemaValidator wraps s so that, in addition to s's own
// Validate, the artifact at outputKey must also satisfy schemaPath.
func WithJSONSchemaValidator(s Step, outputKey, schemaPath string, strict bool) Step {
	return &schemaValidated{Step: s, outputKey: outputKey, schemaPath: schemaPath, strict: strict}
}

func (w *schemaValidated) Validate(ctx context.Context, sc *Context) (bool, error) {
	ok, err := w.Step.Validate(ctx, sc)
	if err != nil || !ok {
		return ok, err
	}

	outPath := w.Step.OutputPath(sc, w.outputKey)
	return validate.JSONSchema(outPath, w.schemaPath, w.strict)
}
