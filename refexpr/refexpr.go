// Package refexpr implements the two small expression languages the
// scheduler evaluates while interpolating a node's inputs and projecting a
// tool's response (spec.md §4.G): "${...}" references into
// {context, vars, nodes} state, and the "$.a.b[2].c" JSONPath subset used
// by a node's "out" mapping.
//
// Grounded on the teacher's plain strings/strconv-based helper style
// (runtime/agent/runtime/helpers.go) rather than a regexp or parser-combinator
// library: both grammars are small enough that a library would add a
// dependency without simplifying the code.
package refexpr

import (
	"fmt"
	"strconv"
	"strings"

	"goa.design/goa-ai/perr"
)

// State is the three-level mapping a reference resolves against.
type State struct {
	Context map[string]any
	Vars    map[string]any
	Nodes   map[string]any
}

// Interpolate walks v recursively. Strings are scanned for "${...}"
// references: if the entire string is a single reference, the raw
// (possibly non-string) referenced value is substituted; otherwise every
// reference found is stringified and substituted in place. Maps and slices
// are interpolated element-wise; every other type passes through unchanged.
func Interpolate(v any, st State) (any, error) {
	switch t := v.(type) {
	case string:
		return interpolateString(t, st)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := Interpolate(val, st)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			r, err := Interpolate(val, st)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func interpolateString(s string, st State) (any, error) {
	if ref, ok := wholeReference(s); ok {
		return resolve(ref, st)
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])
		ref := rest[start+2 : end]
		val, err := resolve(ref, st)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%v", val)
		rest = rest[end+1:]
	}
	return b.String(), nil
}

// wholeReference reports whether s is exactly one "${...}" reference with
// nothing before or after it.
func wholeReference(s string) (string, bool) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	inner := s[2 : len(s)-1]
	if strings.ContainsAny(inner, "{}") {
		return "", false
	}
	return inner, true
}

// resolve looks up a dotted reference path rooted at "context", "vars", or
// a node id, against st.
func resolve(ref string, st State) (any, error) {
	parts := strings.Split(ref, ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, perr.NewSchemaError(perr.StagePre, fmt.Sprintf("malformed reference %q", ref), nil)
	}

	var root any
	var rootName string
	switch parts[0] {
	case "context":
		root, rootName = mapToAny(st.Context), "context"
	case "vars":
		root, rootName = mapToAny(st.Vars), "vars"
	default:
		v, ok := st.Nodes[parts[0]]
		if !ok {
			return nil, perr.NewSchemaError(perr.StagePre,
				fmt.Sprintf("unresolved reference %q (available: %s)", ref, availableRoots(st)), nil)
		}
		root, rootName = v, parts[0]
	}

	cur := root
	for _, key := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, perr.NewSchemaError(perr.StagePre,
				fmt.Sprintf("unresolved reference %q: %q is not an object (available: %s)", ref, rootName, availableRoots(st)), nil)
		}
		val, ok := m[key]
		if !ok {
			return nil, perr.NewSchemaError(perr.StagePre,
				fmt.Sprintf("unresolved reference %q: no key %q (available: %s)", ref, key, availableRoots(st)), nil)
		}
		cur = val
		rootName = key
	}
	return cur, nil
}

func mapToAny(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func availableRoots(st State) string {
	names := []string{"context", "vars"}
	for id := range st.Nodes {
		names = append(names, id)
	}
	return strings.Join(names, ", ")
}

// Project applies a "$.a.b[2].c" JSONPath-subset expression to v, returning
// the selected value. A missing key or out-of-range index is a
// *perr.SchemaError.
func Project(expr string, v any) (any, error) {
	if !strings.HasPrefix(expr, "$.") {
		return nil, perr.NewSchemaError(perr.StagePost, fmt.Sprintf("out expression %q must begin with \"$.\"", expr), nil)
	}
	tokens, err := tokenizePath(expr[2:])
	if err != nil {
		return nil, perr.NewSchemaError(perr.StagePost, fmt.Sprintf("out expression %q: %v", expr, err), err)
	}

	cur := v
	for _, tok := range tokens {
		switch t := tok.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, perr.NewSchemaError(perr.StagePost, fmt.Sprintf("out expression %q: not an object at %q", expr, t), nil)
			}
			val, ok := m[t]
			if !ok {
				return nil, perr.NewSchemaError(perr.StagePost, fmt.Sprintf("out expression %q: missing key %q", expr, t), nil)
			}
			cur = val
		case int:
			arr, ok := cur.([]any)
			if !ok {
				return nil, perr.NewSchemaError(perr.StagePost, fmt.Sprintf("out expression %q: not an array at index %d", expr, t), nil)
			}
			if t < 0 || t >= len(arr) {
				return nil, perr.NewSchemaError(perr.StagePost, fmt.Sprintf("out expression %q: index %d out of range", expr, t), nil)
			}
			cur = arr[t]
		}
	}
	return cur, nil
}

// tokenizePath splits "a.b[2].c" into the sequence of field-name (string)
// and index (int) tokens.
func tokenizePath(path string) ([]any, error) {
	var tokens []any
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, fmt.Errorf("empty path segment")
		}
		name := segment
		var indices []string
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				break
			}
			close := strings.IndexByte(name, ']')
			if close < open {
				return nil, fmt.Errorf("unbalanced brackets in %q", segment)
			}
			indices = append(indices, name[open+1:close])
			name = name[:open] + name[close+1:]
		}
		if name != "" {
			tokens = append(tokens, name)
		}
		for _, idx := range indices {
			n, err := strconv.Atoi(idx)
			if err != nil {
				return nil, fmt.Errorf("non-numeric index %q in %q", idx, segment)
			}
			tokens = append(tokens, n)
		}
	}
	return tokens, nil
}
