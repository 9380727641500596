package scheduler

import (
	"context"
	"time"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/plan"
)

// remainingDeadline returns the duration left until the run's overall
// deadline, and whether a deadline is configured at all.
func (s *scheduler) remainingDeadline() (time.Duration, bool) {
	if !s.hasDeadline {
		return 0, false
	}
	return time.Until(s.deadline), true
}

// effectiveTimeout computes min(node.timeout_ms, remaining_until_deadline),
// per spec.md §4.G step 4. A zero result means "no timeout bound".
func (s *scheduler) effectiveTimeout(n *plan.Node) (time.Duration, error) {
	remaining, hasDeadline := s.remainingDeadline()
	if hasDeadline && remaining <= 0 {
		return 0, perr.NewBudgetError("deadline exceeded")
	}

	var nodeTimeout time.Duration
	if n.TimeoutMs != nil {
		nodeTimeout = time.Duration(*n.TimeoutMs) * time.Millisecond
	}

	switch {
	case nodeTimeout > 0 && hasDeadline:
		if remaining < nodeTimeout {
			return remaining, nil
		}
		return nodeTimeout, nil
	case nodeTimeout > 0:
		return nodeTimeout, nil
	case hasDeadline:
		return remaining, nil
	default:
		return 0, nil
	}
}

// checkBudgetBeforeCall enforces max_tool_calls before attempting an
// invocation, per spec.md §4.G "Budget".
func (s *scheduler) checkBudgetBeforeCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxToolCalls != nil && s.totals.ToolCalls >= *s.maxToolCalls {
		return perr.NewBudgetError("max_tool_calls reached")
	}
	return nil
}

// checkDeadlinePostCall raises BudgetError if the overall deadline has
// already passed by the time a successful call returns.
func (s *scheduler) checkDeadlinePostCall() error {
	if remaining, has := s.remainingDeadline(); has && remaining <= 0 {
		return perr.NewBudgetError("deadline exceeded")
	}
	return nil
}

// sleepBackoff sleeps delayMs milliseconds, bounded by the remaining
// deadline: if the sleep would exceed it, it sleeps what remains and then
// raises BudgetError, per spec.md §4.G step 4.
func (s *scheduler) sleepBackoff(ctx context.Context, delayMs int64) error {
	delay := time.Duration(delayMs) * time.Millisecond
	remaining, hasDeadline := s.remainingDeadline()
	if hasDeadline && remaining <= 0 {
		return perr.NewBudgetError("deadline exceeded")
	}
	if hasDeadline && delay > remaining {
		delay = remaining
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return perr.NewEngineError("cancelled during backoff", ctx.Err())
		}
		return perr.NewBudgetError("deadline exceeded")
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return perr.NewEngineError("cancelled during backoff", ctx.Err())
	}
}

func (s *scheduler) recordCacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals.CacheHits++
}

func (s *scheduler) recordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals.Retries++
}

func (s *scheduler) recordSuccessfulCall(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals.ToolCalls++
	s.totals.TotalMs += ms
}
