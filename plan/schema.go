package plan

// docSchemaJSON is the structural JSON-Schema for a plan document, compiled
// once on the first Parse call and used by Parse to produce a PlanSchemaError
// before any semantic rule runs. Grounded on the teacher's pattern of
// compiling a schema once via jsonschema/v6's NewCompiler/AddResource/Compile
// (registry/service.go, codegen/agent/tests/tool_specs_schema_validation_test.go).
const docSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "graph"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "vars": {"type": "object"},
    "budget": {
      "type": "object",
      "properties": {
        "max_tool_calls": {"type": "integer", "minimum": 0},
        "deadline_ms": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    },
    "execution": {
      "type": "object",
      "properties": {
        "max_parallel": {"type": "integer", "minimum": 1},
        "cache_default": {"type": "boolean"},
        "retry_default": {"$ref": "#/$defs/retryPolicy"}
      },
      "additionalProperties": false
    },
    "graph": {
      "type": "array",
      "items": {"$ref": "#/$defs/node"}
    }
  },
  "additionalProperties": false,
  "$defs": {
    "retryPolicy": {
      "type": "object",
      "required": ["retries", "backoff_ms"],
      "properties": {
        "retries": {"type": "integer", "minimum": 0},
        "backoff_ms": {"type": "integer", "minimum": 0},
        "jitter_ms": {"type": "integer", "minimum": 0},
        "retry_on": {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": false
    },
    "node": {
      "type": "object",
      "required": ["id", "tool"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "tool": {"type": "string", "minLength": 1},
        "inputs": {"type": "object"},
        "needs": {"type": "array", "items": {"type": "string"}},
        "out": {"type": "object", "additionalProperties": {"type": "string"}},
        "cache": {"type": "boolean"},
        "timeout_ms": {"type": "integer", "minimum": 0},
        "retry": {"$ref": "#/$defs/retryPolicy"},
        "concurrency": {"type": "integer", "minimum": 1}
      },
      "additionalProperties": false
    }
  }
}`
