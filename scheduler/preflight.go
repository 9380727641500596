package scheduler

import (
	"context"
	"fmt"

	"goa.design/goa-ai/modelloader"
	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/plan"
	"goa.design/goa-ai/registry"
	"goa.design/goa-ai/tool"
)

// Warmer is an optional interface a Tool built during preflight may
// implement; if the request asks for warmup and the tool supports it, the
// scheduler calls it once before any node runs.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// preflight resolves every distinct tool fqdn referenced by the plan into a
// live Tool, per spec.md §4.G "Preflight". Any failure here is terminal:
// the caller writes nodes/__preflight__.error.json and stops the run.
func (s *scheduler) preflight(ctx context.Context) error {
	s.tools = make(tool.Pool)
	s.manifest = make(map[string]*registry.Manifest)

	fqdns := distinctTools(s.req.Plan)
	for _, fqdn := range fqdns {
		m, err := s.req.Registry.Resolve(fqdn)
		if err != nil {
			return err
		}
		s.manifest[fqdn] = m

		t, err := s.buildTool(ctx, m)
		if err != nil {
			return err
		}
		s.tools[fqdn] = t

		if s.req.Warmup {
			if w, ok := t.(Warmer); ok {
				if err := w.Warmup(ctx); err != nil {
					return perr.NewEngineError(fmt.Sprintf("warmup %q: %v", fqdn, err), err)
				}
			}
		}
	}
	return nil
}

func (s *scheduler) buildTool(ctx context.Context, m *registry.Manifest) (tool.Tool, error) {
	if fn, ok := s.req.Overrides[m.FQDN()]; ok {
		return tool.NewInprocTool(m, fn)
	}
	switch m.Kind {
	case registry.KindHTTP:
		return tool.NewHTTPTool(m)
	case registry.KindInproc:
		if s.req.Factory == nil {
			return nil, perr.NewEngineError(fmt.Sprintf("no factory configured for in-process tool %q", m.FQDN()), nil)
		}
		loader := s.req.Loader
		if loader == nil {
			loader = &modelloader.InMemory{}
		}
		tok, model, err := loader.Load(ctx, m.ModelRef)
		if err != nil {
			return nil, err
		}
		t, err := s.req.Factory.Build(m, loader, tool.Preloaded{Tokenizer: tok, Model: model})
		if err != nil {
			return nil, perr.NewEngineError(fmt.Sprintf("build in-process tool %q: %v", m.FQDN(), err), err)
		}
		return t, nil
	default:
		return nil, perr.NewRegistryError(fmt.Sprintf("manifest %q: unknown kind %q", m.FQDN(), m.Kind), nil)
	}
}

// distinctTools returns the distinct tool fqdns referenced by the plan's
// graph, in order of first appearance.
func distinctTools(p *plan.Plan) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range p.Graph {
		if !seen[n.Tool] {
			seen[n.Tool] = true
			out = append(out, n.Tool)
		}
	}
	return out
}
