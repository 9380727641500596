package tool

import (
	"context"
	"fmt"
	"time"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/registry"
)

// Func is the shape of an in-process tool implementation: it receives a
// context (for cancellation) and the validated payload, and returns the
// raw result before output-schema validation.
type Func func(ctx context.Context, payload any) (any, error)

// InprocTool invokes a tool manifest of kind "inproc" by calling a
// supplied Go function, validating input/output the same way HTTPTool
// does. Grounded on runtime/agent/engine/inmem's inmemActivity
// (handler func(context.Context, any) (any, error) stored alongside its
// options, invoked off a goroutine so a timeout can race it).
type InprocTool struct {
	manifest *registry.Manifest
	fn       Func
	input    *compiledSchema
	output   *compiledSchema
}

// NewInprocTool compiles the manifest's schemas and binds fn as the
// implementation. fn is supplied by the tool factory external collaborator
// (spec.md §6); the engine does not load it itself.
func NewInprocTool(m *registry.Manifest, fn Func) (*InprocTool, error) {
	if m.Kind != registry.KindInproc {
		return nil, fmt.Errorf("tool %s: not an inproc manifest", m.FQDN())
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: nil implementation", m.FQDN())
	}
	in, err := compile(m.FQDN()+"#input", m.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", m.FQDN(), err)
	}
	out, err := compile(m.FQDN()+"#output", m.OutputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", m.FQDN(), err)
	}
	return &InprocTool{manifest: m, fn: fn, input: in, output: out}, nil
}

// Manifest returns the tool's manifest.
func (t *InprocTool) Manifest() *registry.Manifest { return t.manifest }

// Invoke validates payload, calls fn with an optional timeout bound, and
// validates the result. Exceeding the timeout maps to ToolCallError, per
// spec.md §4.C.
func (t *InprocTool) Invoke(ctx context.Context, payload any, timeout time.Duration) (any, error) {
	if err := t.input.validate(perr.StagePre, payload); err != nil {
		return nil, err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := t.fn(callCtx, payload)
		done <- outcome{val: v, err: err}
	}()

	select {
	case <-callCtx.Done():
		return nil, perr.NewToolCallError(0, "", fmt.Sprintf("tool %s timed out: %v", t.manifest.FQDN(), callCtx.Err()), callCtx.Err())
	case res := <-done:
		if res.err != nil {
			if perr.ClassName(res.err) != "" {
				return nil, res.err
			}
			return nil, perr.NewToolCallError(0, "", res.err.Error(), res.err)
		}
		if err := t.output.validate(perr.StagePost, res.val); err != nil {
			return nil, err
		}
		return res.val, nil
	}
}
