// Package perr defines the closed set of error kinds raised by the plan
// execution engine. Each kind is a distinct Go type so callers can
// distinguish them with errors.As rather than string matching, while still
// supporting errors.Is/As chains through Cause.
package perr

import (
	"errors"
	"fmt"
)

// Stage identifies where schema validation failed.
type Stage string

const (
	// StagePre marks input-schema validation, before a tool is invoked.
	StagePre Stage = "PRE"
	// StagePost marks output-schema validation, after a tool returns.
	StagePost Stage = "POST"
)

type (
	// PlanSchemaError reports a structurally or semantically invalid plan
	// document. Never retried; always surfaced.
	PlanSchemaError struct {
		Message string
		Cause   error
	}

	// RegistryError reports a missing or malformed tool manifest. Never
	// retried; always surfaced.
	RegistryError struct {
		Message string
		Cause   error
	}

	// SchemaError reports a payload that failed JSON-Schema validation at a
	// tool boundary. Retryable when a retry pattern names its Stage.
	SchemaError struct {
		Stage   Stage
		Message string
		Cause   error
	}

	// ToolCallError reports a failed tool invocation: a network failure
	// (Status == 0), a non-2xx HTTP response, or an exceeded timeout.
	// Retryable per the node's retry matcher.
	ToolCallError struct {
		Status  int
		Body    string
		Message string
		Cause   error
	}

	// BudgetError reports that a run exceeded its deadline or call budget.
	// Terminal; maps to stop_reason "deadline".
	BudgetError struct {
		Message string
	}

	// ModelLoadError reports a preflight model-acquisition failure. Terminal;
	// maps to stop_reason "error:Preflight".
	ModelLoadError struct {
		Message string
		Cause   error
	}

	// EngineError reports an internal invariant breach or a resume
	// precondition violation. Terminal.
	EngineError struct {
		Message string
		Cause   error
	}
)

func (e *PlanSchemaError) Error() string { return "plan schema: " + e.Message }
func (e *PlanSchemaError) Unwrap() error { return e.Cause }

func (e *RegistryError) Error() string { return "registry: " + e.Message }
func (e *RegistryError) Unwrap() error { return e.Cause }

func (e *SchemaError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("schema[%s]: %s", e.Stage, e.Message)
	}
	return "schema: " + e.Message
}
func (e *SchemaError) Unwrap() error { return e.Cause }

func (e *ToolCallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tool call: status %d: %s", e.Status, e.Message)
	}
	return "tool call: " + e.Message
}
func (e *ToolCallError) Unwrap() error { return e.Cause }

func (e *BudgetError) Error() string { return "budget: " + e.Message }

func (e *ModelLoadError) Error() string { return "model load: " + e.Message }
func (e *ModelLoadError) Unwrap() error { return e.Cause }

func (e *EngineError) Error() string { return "engine: " + e.Message }
func (e *EngineError) Unwrap() error { return e.Cause }

// NewPlanSchemaError constructs a PlanSchemaError with an optional cause.
func NewPlanSchemaError(msg string, cause error) *PlanSchemaError {
	return &PlanSchemaError{Message: msg, Cause: cause}
}

// NewRegistryError constructs a RegistryError with an optional cause.
func NewRegistryError(msg string, cause error) *RegistryError {
	return &RegistryError{Message: msg, Cause: cause}
}

// NewSchemaError constructs a SchemaError for the given validation stage.
func NewSchemaError(stage Stage, msg string, cause error) *SchemaError {
	return &SchemaError{Stage: stage, Message: msg, Cause: cause}
}

// NewToolCallError constructs a ToolCallError. Status 0 indicates a
// network-layer failure rather than an HTTP response.
func NewToolCallError(status int, body, msg string, cause error) *ToolCallError {
	return &ToolCallError{Status: status, Body: body, Message: msg, Cause: cause}
}

// NewBudgetError constructs a BudgetError.
func NewBudgetError(msg string) *BudgetError { return &BudgetError{Message: msg} }

// NewModelLoadError constructs a ModelLoadError with an optional cause.
func NewModelLoadError(msg string, cause error) *ModelLoadError {
	return &ModelLoadError{Message: msg, Cause: cause}
}

// NewEngineError constructs an EngineError with an optional cause.
func NewEngineError(msg string, cause error) *EngineError {
	return &EngineError{Message: msg, Cause: cause}
}

// ClassName returns the Go type name of the error's taxonomy class, used to
// build stop_reason strings ("error:<ClassName>") and CLI exit-code mapping.
// Returns "" if err does not match a known class.
func ClassName(err error) string {
	switch {
	case errors.As(err, new(*PlanSchemaError)):
		return "PlanSchemaError"
	case errors.As(err, new(*RegistryError)):
		return "RegistryError"
	case errors.As(err, new(*SchemaError)):
		return "SchemaError"
	case errors.As(err, new(*ToolCallError)):
		return "ToolCallError"
	case errors.As(err, new(*BudgetError)):
		return "BudgetError"
	case errors.As(err, new(*ModelLoadError)):
		return "ModelLoadError"
	case errors.As(err, new(*EngineError)):
		return "EngineError"
	default:
		return ""
	}
}
