// Package plan implements the plan intermediate representation and
// validator (spec.md §3, §4.A): parsing a YAML or JSON plan document,
// structural JSON-Schema validation, and the four semantic rules (unique
// node ids, tool resolution, DAG acyclicity, retry-pattern grammar).
package plan

type (
	// RetryPolicy configures per-node (or execution-default) retry
	// behavior, per spec.md §3.
	RetryPolicy struct {
		Retries   int      `json:"retries"              yaml:"retries"`
		BackoffMs int64    `json:"backoff_ms"           yaml:"backoff_ms"`
		JitterMs  int64    `json:"jitter_ms"            yaml:"jitter_ms"`
		RetryOn   []string `json:"retry_on,omitempty"   yaml:"retry_on,omitempty"`
	}

	// Budget caps the overall run, per spec.md §3.
	Budget struct {
		MaxToolCalls *int   `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty"`
		DeadlineMs   *int64 `json:"deadline_ms,omitempty"    yaml:"deadline_ms,omitempty"`
	}

	// Execution carries plan-wide defaults, per spec.md §3.
	Execution struct {
		MaxParallel  *int         `json:"max_parallel,omitempty"  yaml:"max_parallel,omitempty"`
		CacheDefault *bool        `json:"cache_default,omitempty" yaml:"cache_default,omitempty"`
		RetryDefault *RetryPolicy `json:"retry_default,omitempty" yaml:"retry_default,omitempty"`
	}

	// Node is one invocation in the plan's DAG, per spec.md §3.
	Node struct {
		ID          string         `json:"id"                     yaml:"id"`
		Tool        string         `json:"tool"                   yaml:"tool"`
		Inputs      map[string]any `json:"inputs,omitempty"       yaml:"inputs,omitempty"`
		Needs       []string       `json:"needs,omitempty"        yaml:"needs,omitempty"`
		Out         map[string]string `json:"out,omitempty"       yaml:"out,omitempty"`
		Cache       *bool          `json:"cache,omitempty"        yaml:"cache,omitempty"`
		TimeoutMs   *int64         `json:"timeout_ms,omitempty"   yaml:"timeout_ms,omitempty"`
		Retry       *RetryPolicy   `json:"retry,omitempty"        yaml:"retry,omitempty"`
		Concurrency *int           `json:"concurrency,omitempty"  yaml:"concurrency,omitempty"`
	}

	// Plan is the top-level document, per spec.md §3.
	Plan struct {
		Version   string         `json:"version"             yaml:"version"`
		Graph     []Node         `json:"graph"                yaml:"graph"`
		Vars      map[string]any `json:"vars,omitempty"       yaml:"vars,omitempty"`
		Budget    *Budget        `json:"budget,omitempty"     yaml:"budget,omitempty"`
		Execution *Execution     `json:"execution,omitempty"  yaml:"execution,omitempty"`
	}
)

// NodeByID returns the node with the given id, or nil.
func (p *Plan) NodeByID(id string) *Node {
	for i := range p.Graph {
		if p.Graph[i].ID == id {
			return &p.Graph[i]
		}
	}
	return nil
}
