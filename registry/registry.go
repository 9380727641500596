package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/goa-ai/canon"
	"goa.design/goa-ai/perr"
)

// Registry holds every tool manifest loaded from a directory, keyed by
// fully-qualified name. Grounded on registry/store/memory/memory.go's
// mutex-guarded map-backed store shape (RWMutex, New() constructor), adapted
// from a live mutable store to an immutable snapshot loaded once at
// Load time (spec.md §4.B has no registration RPC, only a directory load).
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]*Manifest
	hash      string
}

// Load reads every *.json file under root, validates each manifest (schema
// compilation + kind-specific structural checks), rejects duplicate fqdns,
// and returns a Registry whose ContentHash is stable under file-system and
// key ordering.
func Load(root string) (*Registry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, perr.NewRegistryError(fmt.Sprintf("read registry dir %q: %v", root, err), err)
	}

	manifests := make(map[string]*Manifest)
	canonicalBlobs := make([][]byte, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, perr.NewRegistryError(fmt.Sprintf("read manifest %q: %v", path, err), err)
		}
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, perr.NewRegistryError(fmt.Sprintf("parse manifest %q: %v", path, err), err)
		}
		if err := validateSchemaDocs(&m); err != nil {
			return nil, perr.NewRegistryError(fmt.Sprintf("manifest %q: %v", path, err), err)
		}
		if err := m.Validate(); err != nil {
			return nil, perr.NewRegistryError(err.Error(), err)
		}
		fqdn := m.FQDN()
		if _, dup := manifests[fqdn]; dup {
			return nil, perr.NewRegistryError(fmt.Sprintf("duplicate fqdn %q", fqdn), nil)
		}
		manifests[fqdn] = &m
		blob, err := canon.JSON(&m)
		if err != nil {
			return nil, perr.NewRegistryError(fmt.Sprintf("canonicalize manifest %q: %v", path, err), err)
		}
		canonicalBlobs = append(canonicalBlobs, blob)
	}

	return &Registry{
		manifests: manifests,
		hash:      canon.HashSorted(canonicalBlobs),
	}, nil
}

// validateSchemaDocs compiles the manifest's input/output schemas to ensure
// they are themselves valid JSON-Schema documents (spec.md §3 invariant).
// Draft is auto-detected from $schema; absent a $schema the compiler
// defaults to the latest draft, which is a superset of Draft-07 for the
// subset of keywords plan schemas use.
func validateSchemaDocs(m *Manifest) error {
	for label, schema := range map[string]map[string]any{
		"input_schema":  m.InputSchema,
		"output_schema": m.OutputSchema,
	} {
		var doc any
		raw, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		c := jsonschema.NewCompiler()
		url := label + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if _, err := c.Compile(url); err != nil {
			return fmt.Errorf("%s: invalid json-schema: %w", label, err)
		}
	}
	return nil
}

// Resolve returns the manifest registered under fqdn, or a *perr.RegistryError.
func (r *Registry) Resolve(fqdn string) (*Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[fqdn]
	if !ok {
		return nil, perr.NewRegistryError(fmt.Sprintf("tool %q not found in registry", fqdn), nil)
	}
	return m, nil
}

// Has reports whether fqdn is registered, satisfying plan.Resolver so a
// *Registry can be passed directly to plan.Validate.
func (r *Registry) Has(fqdn string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.manifests[fqdn]
	return ok
}

// ContentHash returns the SHA-256 witness over every manifest's canonical
// JSON, sorted before hashing so the result is independent of file-system
// enumeration order and of key ordering within each manifest.
func (r *Registry) ContentHash() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hash
}

// FQDNs returns every registered fully-qualified tool name, sorted.
func (r *Registry) FQDNs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.manifests))
	for fqdn := range r.manifests {
		out = append(out, fqdn)
	}
	sort.Strings(out)
	return out
}

// Health performs a best-effort GET against "<endpoint>/health" for HTTP
// tools. It is explicitly out of scope for correctness (spec.md §4.B): no
// retry, and a non-2xx or network failure simply reports unhealthy.
func (r *Registry) Health(ctx context.Context, fqdn string) (bool, error) {
	m, err := r.Resolve(fqdn)
	if err != nil {
		return false, err
	}
	if m.Kind != KindHTTP {
		return true, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(m.Endpoint, "/")+"/health", nil)
	if err != nil {
		return false, nil //nolint:nilerr // best-effort probe, no retry
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false, nil //nolint:nilerr
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
