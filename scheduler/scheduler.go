// Package scheduler is the plan execution engine's heart (spec.md §4.G):
// preflight tool construction, the resume protocol, dependency tracking, a
// cooperative single-goroutine event loop that dispatches blocking tool
// calls to worker goroutines, global and per-tool concurrency limits, the
// retry loop, budget enforcement, and run termination.
//
// Grounded on the teacher's runtime/agent/engine/inmem package: its
// `future` (a `ready chan struct{}` closed by a goroutine that ran the
// activity handler, read via a blocking `Get`) is the model for a node
// task here, generalized from "one workflow, many typed activities" to
// "one DAG, many nodes with per-node retry and concurrency."
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"goa.design/goa-ai/artifacts"
	"goa.design/goa-ai/cache"
	"goa.design/goa-ai/canon"
	"goa.design/goa-ai/modelloader"
	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/plan"
	"goa.design/goa-ai/refexpr"
	"goa.design/goa-ai/registry"
	"goa.design/goa-ai/retry"
	"goa.design/goa-ai/telemetry"
	"goa.design/goa-ai/tool"
)

// Request bundles everything the scheduler needs to run (or resume) one
// plan, per spec.md §4.G "Inputs".
type Request struct {
	Plan         *plan.Plan
	Context      map[string]any
	Registry     *registry.Registry
	Overrides    map[string]tool.Func // fqdn -> implementation override
	Factory      tool.Factory         // used for in-process manifests without an override
	Loader       modelloader.Loader
	RunsDir      string
	RunID        string
	Resume       bool
	MaxParallel  int // 0 means "use plan.execution.max_parallel, else 1"
	CacheRead    bool
	CacheWrite   bool
	Warmup       bool
	Cache        *cache.Cache
	Logger       telemetry.Logger
	Metrics      telemetry.Metrics
	Tracer       telemetry.Tracer
	Now          func() time.Time // overridable for deterministic tests
}

// Totals reports the run's aggregate counters, per spec.md §4.G "Termination".
type Totals struct {
	Nodes     int   `json:"nodes"`
	ToolCalls int   `json:"tool_calls"`
	CacheHits int   `json:"cache_hits"`
	Retries   int   `json:"retries"`
	TotalMs   int64 `json:"total_ms"`
}

// Summary is the scheduler's terminal result.
type Summary struct {
	RunID      string                       `json:"run_id"`
	OK         bool                         `json:"ok"`
	StopReason *string                      `json:"stop_reason"`
	Totals     Totals                       `json:"totals"`
	Artifacts  map[string]map[string]string `json:"artifacts"`
}

type nodeState int

const (
	statePending nodeState = iota
	stateReady
	stateInFlight
	stateCompleted
	stateFailed
)

type runtimeNode struct {
	def     *plan.Node
	state   nodeState
	retryOn retry.Matcher
	retries int // configured retries
	backoff int64
	jitter  int64
	toolSem *semaphore.Weighted
}

type scheduler struct {
	req      Request
	store    *artifacts.Store
	tools    tool.Pool
	manifest map[string]*registry.Manifest // fqdn -> manifest, for the distinct tools in this plan
	toolSems map[string]*semaphore.Weighted
	globalSem *semaphore.Weighted

	nodes   map[string]*runtimeNode
	needs   map[string][]string // id -> outstanding deps
	state   refexpr.State
	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	mu           sync.Mutex // guards counters/state touched by worker completion callbacks
	totals       Totals
	nodeMetrics  map[string]NodeMetric
	timeline     []TimelineEvent
	deadline     time.Time
	hasDeadline  bool
	maxToolCalls *int
	failed       bool
	failureErr   error
}

// Run executes (or resumes) a plan end to end and returns its summary. The
// returned error is non-nil only when the run stops before a summary can be
// produced (an artifact read/write failure, a hashing failure, or a rejected
// resume); preflight failures and ordinary node failures are reflected in
// the returned Summary with a nil error.
func Run(ctx context.Context, req Request) (*Summary, error) {
	if req.Logger == nil {
		req.Logger = telemetry.NewNoopLogger()
	}
	if req.Metrics == nil {
		req.Metrics = telemetry.NewNoopMetrics()
	}
	if req.Tracer == nil {
		req.Tracer = telemetry.NewNoopTracer()
	}
	if req.Now == nil {
		req.Now = time.Now
	}

	date := req.Now().UTC().Format("2006-01-02")
	store, err := artifacts.Open(req.RunsDir, date, req.RunID)
	if err != nil {
		return nil, perr.NewEngineError("open run artifacts", err)
	}

	// context.run_output exposes the run's outputs/ directory to nodes via
	// "${context.run_output}", per spec.md §3/§6.
	runContext := make(map[string]any, len(req.Context)+1)
	for k, v := range req.Context {
		runContext[k] = v
	}
	runContext["run_output"] = store.OutputsDir()

	s := &scheduler{
		req:         req,
		store:       store,
		toolSems:    make(map[string]*semaphore.Weighted),
		nodes:       make(map[string]*runtimeNode, len(req.Plan.Graph)),
		needs:       make(map[string][]string, len(req.Plan.Graph)),
		logger:      req.Logger,
		metrics:     req.Metrics,
		tracer:      req.Tracer,
		nodeMetrics: make(map[string]NodeMetric, len(req.Plan.Graph)),
		state: refexpr.State{
			Context: runContext,
			Vars:    req.Plan.Vars,
			Nodes:   map[string]any{},
		},
	}

	inputsHash, err := canon.HashJSON(map[string]any{"plan": req.Plan, "context": req.Context})
	if err != nil {
		return nil, perr.NewEngineError("hash plan+context", err)
	}
	registryHash := req.Registry.ContentHash()

	resumed, resumeErr := s.reconcileRunInfo(inputsHash, registryHash)
	if resumeErr != nil {
		return nil, resumeErr
	}
	if !resumed {
		if err := store.WritePlan(req.Plan); err != nil {
			return nil, perr.NewEngineError("write plan artifact", err)
		}
		if err := store.WriteContext(runContext); err != nil {
			return nil, perr.NewEngineError("write context artifact", err)
		}
		if err := store.WriteRunInfo(artifacts.RunInfo{
			InputsHash:   inputsHash,
			RegistryHash: registryHash,
			CreatedAt:    req.Now().UTC(),
		}); err != nil {
			return nil, perr.NewEngineError("write run info", err)
		}
	}

	if req.Plan.Budget != nil {
		s.maxToolCalls = req.Plan.Budget.MaxToolCalls
		if req.Plan.Budget.DeadlineMs != nil {
			s.deadline = req.Now().Add(time.Duration(*req.Plan.Budget.DeadlineMs) * time.Millisecond)
			s.hasDeadline = true
		}
	}

	if err := s.preflight(ctx); err != nil {
		nodeErr := artifacts.NodeError{Class: perr.ClassName(err), Message: err.Error()}
		_ = store.WritePreflightError(nodeErr)
		s.logger.Error(ctx, "preflight failed", "run_id", req.RunID, "class", nodeErr.Class, "err", err.Error())
		reason := "error:Preflight"
		summary := &Summary{
			RunID:      req.RunID,
			OK:         false,
			StopReason: &reason,
			Totals:     s.totals,
			Artifacts:  store.Paths(nodeIDs(req.Plan)),
		}
		return s.writeTerminalArtifacts(ctx, summary), nil
	}

	s.buildDependencyGraph()
	if err := s.seedCompletedFromResume(); err != nil {
		return nil, err
	}

	return s.runLoop(ctx), nil
}

func nodeIDs(p *plan.Plan) []string {
	out := make([]string, len(p.Graph))
	for i, n := range p.Graph {
		out[i] = n.ID
	}
	return out
}

// reconcileRunInfo implements spec.md §4.G's resume protocol header check.
// It returns resumed=true when an existing compatible run.json was found.
func (s *scheduler) reconcileRunInfo(inputsHash, registryHash string) (bool, error) {
	info, ok, err := s.store.ReadRunInfo()
	if err != nil {
		return false, perr.NewEngineError("read run info", err)
	}
	if !ok {
		return false, nil
	}
	if !s.req.Resume {
		return false, perr.NewEngineError("run id exists; resume disabled", nil)
	}
	if info.InputsHash != inputsHash || info.RegistryHash != registryHash {
		return false, perr.NewEngineError("cannot resume: plan/context or registry changed", nil)
	}
	return true, nil
}
