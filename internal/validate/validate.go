// Package validate implements the gate functions a step's Validate
// method composes: existence, size, emptiness, and JSON Schema checks.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"
)

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileSize reports whether path exists and its size falls within
// [minSize, maxSize]. A maxSize of 0 means no upper bound.
func FileSize(path string, minSize, maxSize int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	size := info.Size()
	if size < minSize {
		return false
	}
	if maxSize > 0 && size > maxSize {
		return false
	}
	return true
}

// NotEmpty is FileSize with a 1-byte minimum.
func NotEmpty(path string) bool {
	return FileSize(path, 1, 0)
}

// JSONSchema validates the JSON document at dataPath against the
// schema at schemaPath. When strict is true, every schema that
// declares "properties" but no "additionalProperties" is treated as if
// additionalProperties: false, rejecting undeclared fields; this
// applies to the root schema and, recursively, to subschemas under
// "properties" only. Subschemas under "items", "$defs"/"definitions",
// or combinators such as "allOf" are left as written, and an object
// schema without "properties" is not restricted.
func JSONSchema(dataPath, schemaPath string, strict bool) (bool, error) {
	schemaDoc, err := loadJSONAny(schemaPath)
	if err != nil {
		return false, errorkind.Wrap(errorkind.Validation, "loading schema", err)
	}
	if strict {
		injectAdditionalPropertiesFalse(schemaDoc)
	}

	schemaJSON, err := json.Marshal(schemaDoc)
	if err != nil {
		return false, errorkind.Wrap(errorkind.Validation, "encoding schema", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(schemaJSON)); err != nil {
		return false, errorkind.Wrap(errorkind.Validation, "compiling schema", err)
	}
	compiled, err := compiler.Compile(schemaPath)
	if err != nil {
		return false, errorkind.Wrap(errorkind.Validation, "compiling schema", err)
	}

	data, err := loadJSONAny(dataPath)
	if err != nil {
		return false, errorkind.Wrap(errorkind.Validation, "loading data", err)
	}

	if err := compiled.Validate(data); err != nil {
		return false, nil // validation failure, not an I/O error
	}
	return true, nil
}

func loadJSONAny(path string) (any, error) {
	data, err := os.ReadFile(path) // #nosec G304 - caller-supplied, config-resolved path
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func injectAdditionalPropertiesFalse(v any) {
	obj, ok := v.(map[string]any)
	if !ok {
		return
	}
	if _, isObjectType := obj["properties"]; isObjectType {
		if _, present := obj["additionalProperties"]; !present {
			obj["additionalProperties"] = false
		}
	}
	if props, ok := obj["properties"].(map[string]any); ok {
		for _, sub := range props {
			injectAdditionalPropertiesFalse(sub)
		}
	}
}

// Check is a single named validation to run as part of a Batch.
type Check struct {
	Key string
	Run func() (bool, error)
}

// BatchResult is the outcome of one Check.
type BatchResult struct {
	Key   string
	OK    bool
	Err   error
}

// Batch runs checks concurrently via an errgroup-bounded fan-out and
// returns one BatchResult per check, in the same order as checks.
// Unlike errgroup's usual fail-fast behavior, Batch always runs every
// check and never aborts early: a failing or erroring validator for
// one artifact key must not hide the result for another.
func Batch(ctx context.Context, checks []Check) ([]BatchResult, error) {
	results := make([]BatchResult, len(checks))

	g, _ := errgroup.WithContext(ctx)
	for i, c := range checks {
		i, c := i, c
		g.Go(func() error {
			ok, err := c.Run()
			results[i] = BatchResult{Key: c.Key, OK: ok, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
