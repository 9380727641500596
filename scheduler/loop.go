package scheduler

import (
	"context"
	"errors"

	"goa.design/goa-ai/perr"
)

// runLoop drives the cooperative event loop described in spec.md §4.G
// "Execution loop": dispatch every currently-ready node as a goroutine,
// wait for the next completion, update dependency state, and repeat until
// nothing is ready and nothing is in flight. A node failure cancels every
// in-flight task, drains their completions (best effort), and stops the
// run without dispatching any further node.
func (s *scheduler) runLoop(ctx context.Context) *Summary {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completions := make(chan nodeCompletion)
	inFlight := 0

	for {
		if !s.failed {
			for _, id := range s.readySet() {
				rn := s.nodes[id]
				rn.state = stateInFlight
				inFlight++
				s.logger.Debug(runCtx, "node dispatched", "node", id, "tool", rn.def.Tool)
				s.appendTimeline(id, "dispatch", 0, "")
				go s.runNode(runCtx, id, completions)
			}
		}

		if inFlight == 0 {
			break
		}

		c := <-completions
		inFlight--
		rn := s.nodes[c.id]

		if c.err != nil {
			rn.state = stateFailed
			class := perr.ClassName(c.err)
			s.logger.Error(runCtx, "node failed", "node", c.id, "class", class, "err", c.err.Error())
			s.appendTimeline(c.id, "failed", 0, class)
			if !s.failed {
				s.failed = true
				s.failureErr = c.err
				cancel()
			}
			continue
		}
		rn.state = stateCompleted
		s.logger.Info(runCtx, "node completed", "node", c.id)
		s.appendTimeline(c.id, "completed", 0, "")
		s.markCompleted(c.id)
	}

	return s.writeTerminalArtifacts(ctx, s.summarize())
}

func (s *scheduler) summarize() *Summary {
	ok := !s.failed
	var stopReason *string
	if s.failed {
		reason := stopReasonFor(s.failureErr)
		stopReason = &reason
	}
	return &Summary{
		RunID:      s.req.RunID,
		OK:         ok,
		StopReason: stopReason,
		Totals:     s.totals,
		Artifacts:  s.store.Paths(nodeIDs(s.req.Plan)),
	}
}

func stopReasonFor(err error) string {
	if isBudgetError(err) {
		return "deadline"
	}
	return "error:" + perr.ClassName(err)
}

func isBudgetError(err error) bool {
	var be *perr.BudgetError
	return errors.As(err, &be)
}
