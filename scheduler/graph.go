package scheduler

import (
	"golang.org/x/sync/semaphore"

	"goa.design/goa-ai/plan"
	"goa.design/goa-ai/retry"
)

const defaultMaxParallel = 1

// buildDependencyGraph constructs per-node runtime state: retry matcher,
// per-tool semaphore (fixed at first sighting, per spec.md §4.G), and the
// deps map the ready-set computation consumes.
func (s *scheduler) buildDependencyGraph() {
	p := s.req.Plan

	maxParallel := defaultMaxParallel
	if s.req.MaxParallel > 0 {
		maxParallel = s.req.MaxParallel
	} else if p.Execution != nil && p.Execution.MaxParallel != nil {
		maxParallel = *p.Execution.MaxParallel
	}
	s.globalSem = semaphore.NewWeighted(int64(maxParallel))

	for i := range p.Graph {
		n := &p.Graph[i]
		rp := effectiveRetry(p, n)
		matcher, _ := retry.ParsePatterns(rp.RetryOn) // already validated by plan.Validate

		rn := &runtimeNode{
			def:     n,
			state:   statePending,
			retryOn: retry.NewMatcher(matcher),
			retries: rp.Retries,
			backoff: rp.BackoffMs,
			jitter:  rp.JitterMs,
		}
		if n.Concurrency != nil {
			if _, ok := s.toolSems[n.Tool]; !ok {
				s.toolSems[n.Tool] = semaphore.NewWeighted(int64(*n.Concurrency))
			}
		}
		s.nodes[n.ID] = rn
		s.needs[n.ID] = append([]string(nil), n.Needs...)
	}
	for _, rn := range s.nodes {
		rn.toolSem = s.toolSems[rn.def.Tool]
	}
	s.totals.Nodes = len(p.Graph)
}

// effectiveRetry resolves a node's retry policy against execution.retry_default.
func effectiveRetry(p *plan.Plan, n *plan.Node) plan.RetryPolicy {
	if n.Retry != nil {
		return *n.Retry
	}
	if p.Execution != nil && p.Execution.RetryDefault != nil {
		return *p.Execution.RetryDefault
	}
	return plan.RetryPolicy{}
}

// readySet returns every pending node whose outstanding deps are empty.
func (s *scheduler) readySet() []string {
	var ready []string
	for id, rn := range s.nodes {
		if rn.state == statePending && len(s.needs[id]) == 0 {
			ready = append(ready, id)
		}
	}
	return ready
}

// markCompleted removes id from every other node's outstanding deps.
func (s *scheduler) markCompleted(id string) {
	for other, deps := range s.needs {
		if other == id {
			continue
		}
		filtered := deps[:0]
		for _, d := range deps {
			if d != id {
				filtered = append(filtered, d)
			}
		}
		s.needs[other] = filtered
	}
}

