// Package modelloader declares the external model-loader collaborator
// interface used during scheduler preflight (spec.md §6): acquiring the
// tokenizer/model pair an in-process tool's entrypoint factory needs.
// Concrete adapter-download-from-remote-store implementations (hf/s3/gs
// backed) are explicitly out of scope per spec.md §1 — only the interface
// and a deterministic in-memory double are provided here.
package modelloader

import (
	"context"
	"fmt"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/registry"
)

type (
	// Tokenizer is an opaque handle returned by Load, passed through to the
	// tool factory untouched.
	Tokenizer any

	// Model is an opaque handle returned by Load, passed through to the
	// tool factory untouched.
	Model any

	// Loader acquires the tokenizer/model pair described by a manifest's
	// model descriptor. Implementations may fetch from HF/S3/GS/local file
	// stores per the adapter_uri scheme; this package defines only the
	// contract.
	Loader interface {
		Load(ctx context.Context, ref *registry.Model) (Tokenizer, Model, error)
	}
)

// InMemory is a deterministic Loader test double: it resolves any
// registered base_id to a fixed tokenizer/model pair and optionally
// verifies a SHA-256 fixture digest, mirroring the real loader's
// sha256-mismatch failure mode without any network or filesystem access.
type InMemory struct {
	// Fixtures maps base_id to the (tokenizer, model) pair to return.
	Fixtures map[string][2]any
	// Digests maps base_id to the sha256 InMemory reports for it; if a
	// manifest's ref.SHA256 is set and differs, Load fails with
	// ModelLoadError, matching the real loader's "SHA mismatch" case.
	Digests map[string]string
}

// Load implements Loader.
func (m *InMemory) Load(_ context.Context, ref *registry.Model) (Tokenizer, Model, error) {
	if ref.Loader != "peft-lora" {
		return nil, nil, perr.NewModelLoadError(fmt.Sprintf("unsupported loader %q", ref.Loader), nil)
	}
	pair, ok := m.Fixtures[ref.BaseID]
	if !ok {
		return nil, nil, perr.NewModelLoadError(fmt.Sprintf("no fixture registered for base_id %q", ref.BaseID), nil)
	}
	if ref.SHA256 != "" {
		if want, ok := m.Digests[ref.BaseID]; ok && want != ref.SHA256 {
			return nil, nil, perr.NewModelLoadError(fmt.Sprintf("sha256 mismatch for base_id %q", ref.BaseID), nil)
		}
	}
	return pair[0], pair[1], nil
}
