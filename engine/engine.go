// Package engine ties components A-H into the single top-level entry point
// a CLI (or any other caller) uses to execute a plan: parse, validate, load
// the registry, and hand off to the scheduler (spec.md §4, "Engine
// orchestration"). Grounded on the teacher's cmd/demo/main.go wiring style
// (construct runtime, register, run, inspect output), generalized into a
// reusable function rather than an inline main.
package engine

import (
	"context"

	"github.com/google/uuid"

	"goa.design/goa-ai/cache"
	"goa.design/goa-ai/modelloader"
	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/plan"
	"goa.design/goa-ai/registry"
	"goa.design/goa-ai/scheduler"
	"goa.design/goa-ai/telemetry"
	"goa.design/goa-ai/tool"
)

// RunRequest bundles everything needed to execute one plan. PlanSource,
// RegistryRoot and RunsDir are required; every other field has a documented
// default.
type RunRequest struct {
	// PlanSource is the raw JSON or YAML plan document.
	PlanSource []byte
	// Context seeds State.context.
	Context map[string]any

	// RegistryRoot is the directory registry.Load reads manifests from.
	RegistryRoot string

	// Overrides binds an fqdn directly to an in-process implementation,
	// bypassing the model loader and entrypoint factory. Used by tests and
	// by callers that already have the implementation in process.
	Overrides map[string]tool.Func
	// Factory builds a Tool for in-process manifests with no override.
	Factory tool.Factory
	// Loader acquires the (tokenizer, model) pair for in-process manifests.
	// Defaults to an empty modelloader.InMemory if nil.
	Loader modelloader.Loader

	// RunsDir is the root of the <date>/<run_id>/ artifact tree.
	RunsDir string
	// RunID identifies the run; a fresh uuid is generated when empty.
	RunID string
	// Resume allows reusing an existing, hash-compatible run directory.
	Resume bool

	// MaxParallel overrides plan.execution.max_parallel when > 0.
	MaxParallel int
	// Warmup calls Warmup() on any built tool that implements it.
	Warmup bool

	// CacheRoot enables the content-addressed cache when non-empty.
	CacheRoot     string
	CacheMaxBytes int64
	CacheRead     bool
	CacheWrite    bool

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Run parses and validates the plan, loads the registry, and executes the
// run to completion, returning the scheduler's summary. Per the
// tuple-return convention used throughout this engine: a non-nil error
// means the run could not even start (plan/registry/engine-level failure);
// once scheduling begins, node failures are reported inside the returned
// Summary, not as a Go error.
func Run(ctx context.Context, req RunRequest) (*scheduler.Summary, error) {
	p, err := plan.Parse(req.PlanSource)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(req.RegistryRoot)
	if err != nil {
		return nil, err
	}

	if err := plan.Validate(p, reg); err != nil {
		return nil, err
	}

	var c *cache.Cache
	if req.CacheRoot != "" {
		c, err = cache.New(req.CacheRoot, cache.WithMaxBytes(req.CacheMaxBytes))
		if err != nil {
			return nil, perr.NewEngineError("init cache", err)
		}
	}

	loader := req.Loader
	if loader == nil {
		loader = &modelloader.InMemory{}
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	if req.RunsDir == "" {
		return nil, perr.NewEngineError("runs directory is required", nil)
	}

	return scheduler.Run(ctx, scheduler.Request{
		Plan:        p,
		Context:     req.Context,
		Registry:    reg,
		Overrides:   req.Overrides,
		Factory:     req.Factory,
		Loader:      loader,
		RunsDir:     req.RunsDir,
		RunID:       runID,
		Resume:      req.Resume,
		MaxParallel: req.MaxParallel,
		CacheRead:   req.CacheRead,
		CacheWrite:  req.CacheWrite,
		Warmup:      req.Warmup,
		Cache:       c,
		Logger:      req.Logger,
		Metrics:     req.Metrics,
		Tracer:      req.Tracer,
	})
}

// ExitCode maps an engine-level error to the CLI exit code scheme of
// spec.md §6: SchemaError -> 12, ToolCallError -> 13, BudgetError -> 14,
// PlanSchemaError/EngineError/RegistryError/ModelLoadError -> 15.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch perr.ClassName(err) {
	case "SchemaError":
		return 12
	case "ToolCallError":
		return 13
	case "BudgetError":
		return 14
	default:
		return 15
	}
}

// SummaryExitCode maps a completed run's stop_reason to the same scheme,
// for callers that got a Summary rather than a Go error.
func SummaryExitCode(s *scheduler.Summary) int {
	if s == nil || s.OK {
		return 0
	}
	if s.StopReason == nil {
		return 15
	}
	reason := *s.StopReason
	switch {
	case reason == "deadline":
		return 14
	case reason == "error:Preflight":
		return 15
	default:
		return exitCodeForClassSuffix(reason)
	}
}

func exitCodeForClassSuffix(reason string) int {
	const prefix = "error:"
	if len(reason) <= len(prefix) {
		return 15
	}
	switch reason[len(prefix):] {
	case "SchemaError":
		return 12
	case "ToolCallError":
		return 13
	case "BudgetError":
		return 14
	default:
		return 15
	}
}
