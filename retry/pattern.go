// Package retry implements the plan execution engine's retry-pattern
// grammar and exponential backoff with jitter.
//
// Grounded on the teacher's runtime/a2a/retry package: IsRetryable there is
// a single hardcoded predicate over one error shape (HTTPStatusError plus
// net.Error/net.DNSError). Here the same "classify, then decide" shape is
// generalized into a declarative pattern grammar so plan authors can choose
// which error classes and sub-cases are retryable per node.
package retry

import (
	"fmt"
	"strconv"
	"strings"

	"goa.design/goa-ai/perr"
)

// Class names recognized by the pattern grammar.
const (
	ClassToolCallError   = "ToolCallError"
	ClassSchemaError     = "SchemaError"
	ClassEngineError     = "EngineError"
	ClassPlanSchemaError = "PlanSchemaError"
	ClassRegistryError   = "RegistryError"
	ClassBudgetError     = "BudgetError"
	ClassModelLoadError  = "ModelLoadError"
)

// Pattern is one parsed retry_on entry: "Class[:spec]".
type Pattern struct {
	Class string
	Spec  string // raw spec text, e.g. "500", "5xx", "PRE", "POST"
}

// ParsePattern parses a single "Class[:spec]" retry pattern. It returns a
// *perr.PlanSchemaError on an unknown class or malformed spec, per spec.md
// §4.E ("Unknown class prefix -> PlanSchemaError at plan-validation time").
func ParsePattern(s string) (Pattern, error) {
	class, spec, _ := strings.Cut(s, ":")
	switch class {
	case ClassToolCallError:
		if spec != "" {
			if err := validateToolCallSpec(spec); err != nil {
				return Pattern{}, perr.NewPlanSchemaError(fmt.Sprintf("retry pattern %q: %v", s, err), nil)
			}
		}
	case ClassSchemaError:
		if spec != "" && spec != string(perr.StagePre) && spec != string(perr.StagePost) {
			return Pattern{}, perr.NewPlanSchemaError(fmt.Sprintf("retry pattern %q: stage must be PRE or POST", s), nil)
		}
	case ClassEngineError, ClassPlanSchemaError, ClassRegistryError, ClassBudgetError, ClassModelLoadError:
		if spec != "" {
			return Pattern{}, perr.NewPlanSchemaError(fmt.Sprintf("retry pattern %q: class %s takes no spec", s, class), nil)
		}
	default:
		return Pattern{}, perr.NewPlanSchemaError(fmt.Sprintf("retry pattern %q: unknown class %q", s, class), nil)
	}
	return Pattern{Class: class, Spec: spec}, nil
}

func validateToolCallSpec(spec string) error {
	if strings.HasSuffix(spec, "xx") {
		digit := strings.TrimSuffix(spec, "xx")
		if len(digit) != 1 {
			return fmt.Errorf("family spec must be one digit followed by xx, got %q", spec)
		}
		if _, err := strconv.Atoi(digit); err != nil {
			return fmt.Errorf("family spec digit invalid: %w", err)
		}
		return nil
	}
	if _, err := strconv.Atoi(spec); err != nil {
		return fmt.Errorf("exact status spec invalid: %w", err)
	}
	return nil
}

// ParsePatterns parses every entry in patterns, stopping at the first error.
func ParsePatterns(patterns []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		parsed, err := ParsePattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// Matcher decides whether a given error should be retried, per an ordered
// list of patterns. A candidate matches if any rule matches (short-circuit).
type Matcher struct {
	patterns []Pattern
}

// NewMatcher builds a Matcher from already-parsed patterns.
func NewMatcher(patterns []Pattern) Matcher {
	return Matcher{patterns: patterns}
}

// Match reports whether err matches any configured pattern.
func (m Matcher) Match(err error) bool {
	for _, p := range m.patterns {
		if matchOne(p, err) {
			return true
		}
	}
	return false
}

func matchOne(p Pattern, err error) bool {
	switch p.Class {
	case ClassToolCallError:
		var tce *perr.ToolCallError
		if !asToolCallError(err, &tce) {
			return false
		}
		if p.Spec == "" {
			return true
		}
		if strings.HasSuffix(p.Spec, "xx") {
			digit, _ := strconv.Atoi(strings.TrimSuffix(p.Spec, "xx"))
			family := digit * 100
			if tce.Status == 0 {
				return false
			}
			return (tce.Status/100)*100 == family
		}
		status, _ := strconv.Atoi(p.Spec)
		return tce.Status == status
	case ClassSchemaError:
		var se *perr.SchemaError
		if !asSchemaError(err, &se) {
			return false
		}
		if p.Spec == "" {
			return true
		}
		return string(se.Stage) == p.Spec
	case ClassEngineError:
		return isClass[*perr.EngineError](err)
	case ClassPlanSchemaError:
		return isClass[*perr.PlanSchemaError](err)
	case ClassRegistryError:
		return isClass[*perr.RegistryError](err)
	case ClassBudgetError:
		return isClass[*perr.BudgetError](err)
	case ClassModelLoadError:
		return isClass[*perr.ModelLoadError](err)
	default:
		return false
	}
}
