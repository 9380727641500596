package plan

import (
	"fmt"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/retry"
)

// Resolver reports whether a tool fqdn is known to the registry in force
// for this plan. It is satisfied by *registry.Registry's Has method; kept
// as a narrow interface here so plan does not import registry.
type Resolver interface {
	Has(fqdn string) bool
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(fqdn string) bool

// Has implements Resolver.
func (f ResolverFunc) Has(fqdn string) bool { return f(fqdn) }

// Validate runs the four semantic rules spec.md §4.A requires beyond
// structural JSON-Schema validation: unique node ids, tool resolution
// against the registry, DAG acyclicity over "needs", and retry-pattern
// grammar. Every violation is a *perr.PlanSchemaError.
func Validate(p *Plan, tools Resolver) error {
	if err := checkUniqueIDs(p); err != nil {
		return err
	}
	if err := checkToolsResolve(p, tools); err != nil {
		return err
	}
	if err := checkAcyclic(p); err != nil {
		return err
	}
	if err := checkRetryPatterns(p); err != nil {
		return err
	}
	return nil
}

func checkUniqueIDs(p *Plan) error {
	seen := make(map[string]bool, len(p.Graph))
	for _, n := range p.Graph {
		if seen[n.ID] {
			return perr.NewPlanSchemaError(fmt.Sprintf("duplicate node id %q", n.ID), nil)
		}
		seen[n.ID] = true
	}
	return nil
}

func checkToolsResolve(p *Plan, tools Resolver) error {
	if tools == nil {
		return nil
	}
	for _, n := range p.Graph {
		if !tools.Has(n.Tool) {
			return perr.NewPlanSchemaError(fmt.Sprintf("node %q references unknown tool %q", n.ID, n.Tool), nil)
		}
	}
	return nil
}

func checkAcyclic(p *Plan) error {
	byID := make(map[string]*Node, len(p.Graph))
	for i := range p.Graph {
		byID[p.Graph[i].ID] = &p.Graph[i]
	}
	for _, n := range p.Graph {
		for _, dep := range n.Needs {
			if _, ok := byID[dep]; !ok {
				return perr.NewPlanSchemaError(fmt.Sprintf("node %q needs unknown node %q", n.ID, dep), nil)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.Graph))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			stack = append(stack, id)
			return perr.NewPlanSchemaError(fmt.Sprintf("cycle detected in graph: %v", cyclePath(stack)), nil)
		}
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range byID[id].Needs {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, n := range p.Graph {
		if color[n.ID] == white {
			if err := visit(n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath trims the stack down to the repeated node, for a readable error.
func cyclePath(stack []string) []string {
	if len(stack) == 0 {
		return stack
	}
	last := stack[len(stack)-1]
	for i, id := range stack {
		if id == last {
			return stack[i:]
		}
	}
	return stack
}

func checkRetryPatterns(p *Plan) error {
	if p.Execution != nil && p.Execution.RetryDefault != nil {
		if _, err := retry.ParsePatterns(p.Execution.RetryDefault.RetryOn); err != nil {
			return perr.NewPlanSchemaError("execution.retry_default: "+err.Error(), err)
		}
	}
	for _, n := range p.Graph {
		if n.Retry == nil {
			continue
		}
		if _, err := retry.ParsePatterns(n.Retry.RetryOn); err != nil {
			return perr.NewPlanSchemaError(fmt.Sprintf("node %q retry: %s", n.ID, err.Error()), err)
		}
	}
	return nil
}
