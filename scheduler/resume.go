package scheduler

import "goa.design/goa-ai/perr"

// seedCompletedFromResume reconstructs already-finished nodes from
// nodes/<id>.response.json so a resumed run does not re-execute them, per
// spec.md §4.G "Resume protocol".
func (s *scheduler) seedCompletedFromResume() error {
	for id, rn := range s.nodes {
		resp, ok, err := s.store.ReadNodeResponse(id)
		if err != nil {
			return perr.NewEngineError("read node response for resume", err)
		}
		if !ok {
			continue
		}
		exposed, err := s.projectOutput(rn.def, resp.Data)
		if err != nil {
			return err
		}
		s.state.Nodes[id] = exposed
		rn.state = stateCompleted
		s.markCompleted(id)

		s.mu.Lock()
		s.totals.TotalMs += resp.Ms
		s.mu.Unlock()
		s.recordNodeMetric(id, NodeMetric{Tool: rn.def.Tool, OK: true, Ms: resp.Ms, Cache: cacheField(s.manifest[rn.def.Tool].SideEffecting(), false)})
	}
	return nil
}
