package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"goa.design/goa-ai/perr"
)

var (
	docSchemaOnce sync.Once
	docSchema     *jsonschema.Schema
	docSchemaErr  error
)

func compiledDocSchema() (*jsonschema.Schema, error) {
	docSchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(docSchemaJSON), &doc); err != nil {
			docSchemaErr = fmt.Errorf("plan: decode built-in schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("plan.json", doc); err != nil {
			docSchemaErr = fmt.Errorf("plan: register built-in schema: %w", err)
			return
		}
		s, err := c.Compile("plan.json")
		if err != nil {
			docSchemaErr = fmt.Errorf("plan: compile built-in schema: %w", err)
			return
		}
		docSchema = s
	})
	return docSchema, docSchemaErr
}

// Parse decodes a plan document that is either JSON or YAML (sniffed from
// the first non-whitespace byte: '{' or '[' is JSON, anything else is
// YAML), validates it against the structural JSON-Schema, and unmarshals it
// into a *Plan. Any violation is a *perr.PlanSchemaError.
func Parse(data []byte) (*Plan, error) {
	jsonBytes, err := toJSON(data)
	if err != nil {
		return nil, perr.NewPlanSchemaError("decode plan document: "+err.Error(), err)
	}

	var generic any
	if err := json.Unmarshal(jsonBytes, &generic); err != nil {
		return nil, perr.NewPlanSchemaError("plan document is not valid JSON/YAML: "+err.Error(), err)
	}

	schema, err := compiledDocSchema()
	if err != nil {
		return nil, perr.NewEngineError("plan schema unavailable", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, perr.NewPlanSchemaError("plan document failed structural validation: "+err.Error(), err)
	}

	var p Plan
	if err := json.Unmarshal(jsonBytes, &p); err != nil {
		return nil, perr.NewPlanSchemaError("decode plan into model: "+err.Error(), err)
	}
	return &p, nil
}

func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return data, nil
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	normalized := normalizeYAML(generic)
	return json.Marshal(normalized)
}

// normalizeYAML converts map[string]interface{} keys that yaml.v3 may
// decode as non-string scalars, and recurses into slices/maps, so the
// result round-trips cleanly through encoding/json.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
