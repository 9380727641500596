// Package artifacts owns the on-disk layout of a run (spec.md §3, §4.F):
// <runs>/<date>/<run_id>/{plan.json, context.json, run.json, nodes/*,
// metrics.json, metrics.timeline.json, summary.json, outputs/}. Every write
// is atomic (tmp file + os.Rename), the same discipline used by the cache
// package. Artifacts are created by the engine,
// mutated only by the engine, and never deleted by it; retention is an
// operator concern.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"goa.design/goa-ai/canon"
)

// RunInfo is the content of run.json, written once at first start and read
// back to decide whether a resume is compatible.
type RunInfo struct {
	InputsHash   string    `json:"inputs_hash"`
	RegistryHash string    `json:"registry_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// NodeResponse is the content of nodes/<id>.response.json.
type NodeResponse struct {
	Tool string `json:"tool"`
	Data any    `json:"data"`
	Ms   int64  `json:"ms"`
}

// NodeError is the content of nodes/<id>.error.json (and the preflight
// marker, nodes/__preflight__.error.json).
type NodeError struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

// PreflightNodeID names the synthetic node id used for a preflight failure
// marker: nodes/__preflight__.error.json.
const PreflightNodeID = "__preflight__"

// Store owns one run's directory and every read/write against it.
type Store struct {
	root string // <runs>/<date>/<run_id>
}

// Open resolves (and creates, if absent) the run directory under
// runsDir/<date>/<runID>, along with its nodes/ and outputs/
// subdirectories. date is formatted by the caller (the engine uses
// time.Now().UTC().Format("2006-01-02")) so tests can pin it.
func Open(runsDir, date, runID string) (*Store, error) {
	root := filepath.Join(runsDir, date, runID)
	for _, dir := range []string{root, filepath.Join(root, "nodes"), filepath.Join(root, "outputs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("artifacts: create %q: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the run's directory.
func (s *Store) Root() string { return s.root }

// OutputsDir is the working directory exposed to nodes via
// context.run_output.
func (s *Store) OutputsDir() string { return filepath.Join(s.root, "outputs") }

func (s *Store) nodePath(id, suffix string) string {
	return filepath.Join(s.root, "nodes", id+"."+suffix+".json")
}

// writeAtomic canonicalizes value and writes it to path via a temp file in
// the same directory followed by os.Rename, so a concurrent reader never
// observes a torn file.
func writeAtomic(path string, value any) error {
	raw, err := canon.JSON(value)
	if err != nil {
		return fmt.Errorf("artifacts: encode %q: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("artifacts: create temp file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("artifacts: write temp file for %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("artifacts: close temp file for %q: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("artifacts: rename into %q: %w", path, err)
	}
	return nil
}

func readJSON(path string, out any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("artifacts: read %q: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("artifacts: decode %q: %w", path, err)
	}
	return true, nil
}

// WritePlan persists plan.json.
func (s *Store) WritePlan(plan any) error {
	return writeAtomic(filepath.Join(s.root, "plan.json"), plan)
}

// WriteContext persists context.json.
func (s *Store) WriteContext(ctxValue any) error {
	return writeAtomic(filepath.Join(s.root, "context.json"), ctxValue)
}

// WriteRunInfo persists run.json.
func (s *Store) WriteRunInfo(info RunInfo) error {
	return writeAtomic(filepath.Join(s.root, "run.json"), info)
}

// ReadRunInfo reads run.json; ok is false if the run has not started.
func (s *Store) ReadRunInfo() (info RunInfo, ok bool, err error) {
	ok, err = readJSON(filepath.Join(s.root, "run.json"), &info)
	return info, ok, err
}

// WriteNodeRequest persists nodes/<id>.request.json.
func (s *Store) WriteNodeRequest(id string, inputs any) error {
	return writeAtomic(s.nodePath(id, "request"), inputs)
}

// WriteNodeResponse persists nodes/<id>.response.json.
func (s *Store) WriteNodeResponse(id string, resp NodeResponse) error {
	return writeAtomic(s.nodePath(id, "response"), resp)
}

// ReadNodeResponse reads nodes/<id>.response.json; ok is false if the node
// has not completed in a prior run.
func (s *Store) ReadNodeResponse(id string) (resp NodeResponse, ok bool, err error) {
	ok, err = readJSON(s.nodePath(id, "response"), &resp)
	return resp, ok, err
}

// WriteNodeError persists nodes/<id>.error.json.
func (s *Store) WriteNodeError(id string, nodeErr NodeError) error {
	return writeAtomic(s.nodePath(id, "error"), nodeErr)
}

// WritePreflightError persists nodes/__preflight__.error.json.
func (s *Store) WritePreflightError(nodeErr NodeError) error {
	return s.WriteNodeError(PreflightNodeID, nodeErr)
}

// WriteMetrics persists metrics.json.
func (s *Store) WriteMetrics(metrics any) error {
	return writeAtomic(filepath.Join(s.root, "metrics.json"), metrics)
}

// WriteTimeline persists metrics.timeline.json.
func (s *Store) WriteTimeline(timeline any) error {
	return writeAtomic(filepath.Join(s.root, "metrics.timeline.json"), timeline)
}

// WriteSummary persists summary.json.
func (s *Store) WriteSummary(summary any) error {
	return writeAtomic(filepath.Join(s.root, "summary.json"), summary)
}

// Paths returns the node-id-indexed mapping of on-disk artifacts created
// for that node, surfaced to the run summary. Only paths that exist are
// included.
func (s *Store) Paths(nodeIDs []string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(nodeIDs))
	for _, id := range nodeIDs {
		entry := map[string]string{}
		for _, suffix := range []string{"request", "response", "error"} {
			p := s.nodePath(id, suffix)
			if _, err := os.Stat(p); err == nil {
				entry[suffix] = p
			}
		}
		if len(entry) > 0 {
			out[id] = entry
		}
	}
	return out
}
