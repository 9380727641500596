package scheduler

import (
	"context"
	"time"
)

// NodeMetric is one node's entry in metrics.json, per spec.md §4.G's resume
// protocol wording ("ok=true, retries=0, ms=<recorded>, cache field false or
// bypassed:side_effect"), generalized to cover every termination path, not
// only resumed ones.
type NodeMetric struct {
	Tool    string `json:"tool"`
	OK      bool   `json:"ok"`
	Retries int    `json:"retries"`
	Ms      int64  `json:"ms"`
	Cache   any    `json:"cache"`
}

// RunMetrics is the content of metrics.json.
type RunMetrics struct {
	RunID      string                `json:"run_id"`
	StopReason *string               `json:"stop_reason"`
	Totals     Totals                `json:"totals"`
	Nodes      map[string]NodeMetric `json:"nodes"`
}

// TimelineEvent is one entry in metrics.timeline.json: a single observable
// node lifecycle transition, in the order the scheduler observed it.
type TimelineEvent struct {
	Ts      time.Time `json:"ts"`
	Node    string    `json:"node"`
	Event   string    `json:"event"`
	Attempt int       `json:"attempt,omitempty"`
	Class   string    `json:"class,omitempty"`
}

func (s *scheduler) recordNodeMetric(id string, m NodeMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeMetrics[id] = m
}

func (s *scheduler) appendTimeline(node, event string, attempt int, class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline = append(s.timeline, TimelineEvent{
		Ts:      s.req.Now().UTC(),
		Node:    node,
		Event:   event,
		Attempt: attempt,
		Class:   class,
	})
}

// cacheField reports the value spec.md §4.D/§4.G mandate for a node's
// per-metrics cache field: the literal string "bypassed:side_effect" for a
// side-effecting manifest, otherwise whether this node's value came from a
// cache hit.
func cacheField(sideEffecting, hit bool) any {
	if sideEffecting {
		return "bypassed:side_effect"
	}
	return hit
}

// writeTerminalArtifacts persists metrics.json, metrics.timeline.json, and
// summary.json for a finished (successful, failed, or preflight-aborted)
// run, per spec.md §4.F/§7 ("all terminal errors result in ... an updated
// metrics.stop_reason"). Failures to write are logged but never override
// the summary already computed: an operator who lost a metrics write still
// gets the authoritative exit code from the returned Summary.
func (s *scheduler) writeTerminalArtifacts(ctx context.Context, summary *Summary) *Summary {
	s.mu.Lock()
	nodes := make(map[string]NodeMetric, len(s.nodeMetrics))
	for k, v := range s.nodeMetrics {
		nodes[k] = v
	}
	timeline := make([]TimelineEvent, len(s.timeline))
	copy(timeline, s.timeline)
	s.mu.Unlock()

	metrics := RunMetrics{
		RunID:      summary.RunID,
		StopReason: summary.StopReason,
		Totals:     summary.Totals,
		Nodes:      nodes,
	}

	if err := s.store.WriteMetrics(metrics); err != nil {
		s.logger.Error(ctx, "write metrics artifact failed", "run_id", summary.RunID, "err", err.Error())
	}
	if err := s.store.WriteTimeline(timeline); err != nil {
		s.logger.Error(ctx, "write timeline artifact failed", "run_id", summary.RunID, "err", err.Error())
	}
	if err := s.store.WriteSummary(summary); err != nil {
		s.logger.Error(ctx, "write summary artifact failed", "run_id", summary.RunID, "err", err.Error())
	}
	return summary
}
