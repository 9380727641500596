package tool

import (
	"fmt"

	"goa.design/goa-ai/modelloader"
	"goa.design/goa-ai/registry"
)

// Preloaded bundles the tokenizer/model pair a tool factory receives once
// the scheduler's preflight has resolved them via the model loader.
type Preloaded struct {
	Tokenizer modelloader.Tokenizer
	Model     modelloader.Model
}

// Factory constructs a Tool for an in-process manifest, given the loader
// used for preflight and the already-loaded (tokenizer, model) pair. Per
// spec.md §6: "factory(manifest, loader, preloaded=(tok,model)) -> Tool.
// May raise -> EngineError". Entry-point resolution (importing
// manifest.Entrypoint's module + symbol) is the concrete factory's job; this
// package only defines the contract the scheduler calls through.
type Factory interface {
	Build(m *registry.Manifest, loader modelloader.Loader, preloaded Preloaded) (Tool, error)
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func(m *registry.Manifest, loader modelloader.Loader, preloaded Preloaded) (Tool, error)

// Build implements Factory.
func (f FactoryFunc) Build(m *registry.Manifest, loader modelloader.Loader, preloaded Preloaded) (Tool, error) {
	return f(m, loader, preloaded)
}

// StaticFactory builds an InprocTool from a pre-registered Func per
// fqdn, ignoring the loaded tokenizer/model. Used by tests and by callers
// that bind implementations directly (the "implementation overrides"
// scheduler input of spec.md §4.G) rather than through a real entrypoint
// import mechanism.
func StaticFactory(impls map[string]Func) Factory {
	return FactoryFunc(func(m *registry.Manifest, _ modelloader.Loader, _ Preloaded) (Tool, error) {
		fn, ok := impls[m.FQDN()]
		if !ok {
			return nil, fmt.Errorf("no implementation registered for %s", m.FQDN())
		}
		return NewInprocTool(m, fn)
	})
}
