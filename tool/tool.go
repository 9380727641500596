// Package tool implements the uniform invocation interface over
// remote-HTTP and in-process tools (spec.md §4.C), sharing JSON-Schema
// validation and the error taxonomy of package perr between both variants.
package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/registry"
)

// Tool is the capability every invocable tool exposes, regardless of
// transport. Grounded on the teacher's "every tool exposes {manifest,
// invoke}" capability-set pattern (spec.md §9 Design Notes).
type Tool interface {
	Manifest() *registry.Manifest
	Invoke(ctx context.Context, payload any, timeout time.Duration) (any, error)
}

// Pool maps a fully-qualified tool name to its constructed Tool, built once
// during scheduler preflight (spec.md §4.G).
type Pool map[string]Tool

// compiledSchema wraps a compiled jsonschema.Schema so both tool variants
// can share one validate helper; the stage is supplied on each call.
type compiledSchema struct {
	schema *jsonschema.Schema
}

func compile(label string, doc map[string]any) (*compiledSchema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(label, doc); err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}
	s, err := c.Compile(label)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}
	return &compiledSchema{schema: s}, nil
}

// validate checks v against the compiled schema, wrapping any failure in a
// *perr.SchemaError tagged with the given stage.
func (cs *compiledSchema) validate(stage perr.Stage, v any) error {
	if cs == nil {
		return nil
	}
	if err := cs.schema.Validate(v); err != nil {
		return perr.NewSchemaError(stage, err.Error(), err)
	}
	return nil
}
