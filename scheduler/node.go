package scheduler

import (
	"context"
	"time"

	"goa.design/goa-ai/artifacts"
	"goa.design/goa-ai/cache"
	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/plan"
	"goa.design/goa-ai/refexpr"
	"goa.design/goa-ai/retry"
)

type nodeCompletion struct {
	id  string
	err error
}

// snapshotState returns a copy of s.state safe to read concurrently with
// other node goroutines recording their outputs into s.state.Nodes. Each
// node records its own output before reporting completion, and a node is
// only dispatched once every one of its "needs" has completed, so the
// snapshot always contains everything this node's interpolation can
// reference.
func (s *scheduler) snapshotState() refexpr.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := make(map[string]any, len(s.state.Nodes))
	for k, v := range s.state.Nodes {
		nodes[k] = v
	}
	return refexpr.State{Context: s.state.Context, Vars: s.state.Vars, Nodes: nodes}
}

func (s *scheduler) recordNodeOutput(id string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Nodes[id] = value
}

// projectOutput applies a node's "out" mapping (field name -> JSONPath
// expression) to a tool response, per spec.md §3 "State": the full
// response is exposed when out is absent, otherwise the projection.
func (s *scheduler) projectOutput(n *plan.Node, value any) (any, error) {
	if len(n.Out) == 0 {
		return value, nil
	}
	out := make(map[string]any, len(n.Out))
	for field, expr := range n.Out {
		v, err := refexpr.Project(expr, value)
		if err != nil {
			return nil, err
		}
		out[field] = v
	}
	return out, nil
}

// runNode executes one ready node to completion (including its retry
// loop) and reports the outcome on completions. It always acquires and
// releases the global semaphore; a per-tool semaphore, if configured for
// this node's tool, is acquired only around the actual tool invocation.
func (s *scheduler) runNode(ctx context.Context, id string, completions chan<- nodeCompletion) {
	rn := s.nodes[id]

	if err := s.globalSem.Acquire(ctx, 1); err != nil {
		completions <- nodeCompletion{id: id, err: perr.NewEngineError("acquire global semaphore", err)}
		return
	}
	defer s.globalSem.Release(1)

	err := s.executeNode(ctx, rn)
	completions <- nodeCompletion{id: id, err: err}
}

func (s *scheduler) executeNode(ctx context.Context, rn *runtimeNode) error {
	n := rn.def
	manifest := s.manifest[n.Tool]

	rawInputs, err := refexpr.Interpolate(n.Inputs, s.snapshotState())
	if err != nil {
		return err
	}

	sideEffecting := manifest.SideEffecting()
	useCache := s.req.CacheRead && effectiveCacheFlag(s.req.Plan, n) && !sideEffecting
	ck, err := cache.Key(manifest.Name, manifest.Version, rawInputs, manifest.Hash())
	if err != nil {
		return perr.NewEngineError("compute cache key", err)
	}

	if useCache && s.req.Cache != nil {
		if value, hit, err := s.req.Cache.Read(ck); err != nil {
			return perr.NewEngineError("read cache", err)
		} else if hit {
			s.recordCacheHit()
			s.logger.Debug(ctx, "cache hit", "node", n.ID, "tool", n.Tool)
			s.appendTimeline(n.ID, "cache_hit", 0, "")
			exposed, err := s.projectOutput(n, value)
			if err != nil {
				return err
			}
			s.recordNodeOutput(n.ID, exposed)
			s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: true, Ms: 0, Cache: cacheField(sideEffecting, true)})
			return nil
		}
	}

	if err := s.store.WriteNodeRequest(n.ID, rawInputs); err != nil {
		return perr.NewEngineError("write node request", err)
	}

	delays := retry.BackoffDelays(rn.retries, rn.backoff, rn.jitter)
	retriesUsed := 0

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := s.sleepBackoff(ctx, delays[attempt-1]); err != nil {
				s.writeNodeError(ctx, n.ID, err)
				s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: false, Retries: retriesUsed, Cache: cacheField(sideEffecting, false)})
				return err
			}
		}

		if err := s.checkBudgetBeforeCall(); err != nil {
			s.writeNodeError(ctx, n.ID, err)
			s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: false, Retries: retriesUsed, Cache: cacheField(sideEffecting, false)})
			return err
		}

		timeout, err := s.effectiveTimeout(n)
		if err != nil {
			s.writeNodeError(ctx, n.ID, err)
			s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: false, Retries: retriesUsed, Cache: cacheField(sideEffecting, false)})
			return err
		}

		t := s.tools[n.Tool]
		if rn.toolSem != nil {
			if err := rn.toolSem.Acquire(ctx, 1); err != nil {
				toolErr := perr.NewEngineError("acquire per-tool semaphore", err)
				s.writeNodeError(ctx, n.ID, toolErr)
				s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: false, Retries: retriesUsed, Cache: cacheField(sideEffecting, false)})
				return toolErr
			}
		}
		spanCtx, span := s.tracer.Start(ctx, "tool.invoke")
		start := time.Now()
		value, callErr := t.Invoke(spanCtx, rawInputs, timeout)
		ms := time.Since(start).Milliseconds()
		if callErr != nil {
			span.RecordError(callErr)
		}
		span.End()
		if rn.toolSem != nil {
			rn.toolSem.Release(1)
		}

		// A call that failed only because the deadline ran out mid-flight
		// (no node.timeout_ms shorter than it) is a budget failure, not a
		// tool failure: it must terminate the run as BudgetError/"deadline"
		// rather than surface the incidental ToolCallError/SchemaError the
		// tool returned when its context was cancelled.
		if callErr != nil {
			if remaining, has := s.remainingDeadline(); has && remaining <= 0 {
				callErr = perr.NewBudgetError("deadline exceeded")
			}
		}

		if callErr == nil {
			if postErr := s.checkDeadlinePostCall(); postErr != nil {
				s.writeNodeError(ctx, n.ID, postErr)
				s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: false, Retries: retriesUsed, Ms: ms, Cache: cacheField(sideEffecting, false)})
				return postErr
			}
			s.recordSuccessfulCall(ms)
			if err := s.store.WriteNodeResponse(n.ID, artifacts.NodeResponse{Tool: n.Tool, Data: value, Ms: ms}); err != nil {
				return perr.NewEngineError("write node response", err)
			}
			exposed, err := s.projectOutput(n, value)
			if err != nil {
				return err
			}
			s.recordNodeOutput(n.ID, exposed)
			if useCache && s.req.CacheWrite && s.req.Cache != nil {
				_ = s.req.Cache.Write(ck, value)
			}
			s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: true, Retries: retriesUsed, Ms: ms, Cache: cacheField(sideEffecting, false)})
			return nil
		}

		if attempt < rn.retries && rn.retryOn.Match(callErr) {
			retriesUsed++
			s.recordRetry()
			s.logger.Warn(ctx, "node retrying", "node", n.ID, "tool", n.Tool, "attempt", attempt+1, "class", perr.ClassName(callErr))
			s.appendTimeline(n.ID, "retry", attempt+1, perr.ClassName(callErr))
			continue
		}
		s.writeNodeError(ctx, n.ID, callErr)
		s.recordNodeMetric(n.ID, NodeMetric{Tool: n.Tool, OK: false, Retries: retriesUsed, Ms: ms, Cache: cacheField(sideEffecting, false)})
		return callErr
	}
}

func (s *scheduler) writeNodeError(ctx context.Context, id string, err error) {
	class := perr.ClassName(err)
	_ = s.store.WriteNodeError(id, artifacts.NodeError{Class: class, Message: err.Error()})
	s.logger.Error(ctx, "node error", "node", id, "class", class, "err", err.Error())
	if isBudgetError(err) {
		s.logger.Warn(ctx, "budget exceeded", "node", id, "err", err.Error())
		s.metrics.IncCounter("scheduler.budget.exceeded", 1, "node", id)
	}
}

func effectiveCacheFlag(p *plan.Plan, n *plan.Node) bool {
	if n.Cache != nil {
		return *n.Cache
	}
	if p.Execution != nil && p.Execution.CacheDefault != nil {
		return *p.Execution.CacheDefault
	}
	return false
}

