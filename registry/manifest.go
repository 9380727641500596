// Package registry loads tool manifests from a directory, validates them,
// resolves them by fully-qualified name, and computes a stable content hash
// used as a resume-precondition witness (spec.md §4.B).
package registry

import (
	"fmt"
	"net/url"
	"strings"

	"goa.design/goa-ai/canon"
)

// Kind identifies the invocation transport for a tool manifest.
type Kind string

const (
	// KindHTTP manifests carry an endpoint URL invoked over HTTP.
	KindHTTP Kind = "http"
	// KindInproc manifests carry an entry-point reference loaded in-process.
	KindInproc Kind = "inproc"
)

// AdapterScheme enumerates the adapter_uri schemes an in-process model
// descriptor may use.
const (
	SchemeHF   = "hf"
	SchemeS3   = "s3"
	SchemeGS   = "gs"
	SchemeFile = "file"
)

// SideEffectingTag marks a tool whose outputs must never be cached.
const SideEffectingTag = "side_effecting"

type (
	// Model describes an in-process tool's model binding.
	Model struct {
		BaseID     string `json:"base_id"                yaml:"base_id"`
		AdapterURI string `json:"adapter_uri"             yaml:"adapter_uri"`
		Loader     string `json:"loader"                  yaml:"loader"`
		Quant      string `json:"quant,omitempty"         yaml:"quant,omitempty"`
		DeviceHint string `json:"device_hint,omitempty"   yaml:"device_hint,omitempty"`
		Revision   string `json:"revision,omitempty"      yaml:"revision,omitempty"`
		SHA256     string `json:"sha256,omitempty"        yaml:"sha256,omitempty"`
	}

	// Manifest is a tool's declaration: identity, kind, transport details,
	// and JSON-Schema documents for its input/output contract.
	Manifest struct {
		Name    string `json:"name"    yaml:"name"`
		Version string `json:"version" yaml:"version"`
		Kind    Kind   `json:"kind"    yaml:"kind"`

		// HTTP-only.
		Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

		// In-process only.
		Entrypoint string `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
		ModelRef   *Model `json:"model,omitempty"      yaml:"model,omitempty"`

		InputSchema  map[string]any `json:"input_schema"  yaml:"input_schema"`
		OutputSchema map[string]any `json:"output_schema" yaml:"output_schema"`

		Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	}
)

// FQDN returns the manifest's fully-qualified name ("name.version").
func (m *Manifest) FQDN() string {
	return m.Name + "." + m.Version
}

// Hash returns SHA256(canonical_json(manifest)), the "manifest_hash" input
// to the cache key derivation of spec.md §4.D.
func (m *Manifest) Hash() string {
	return canon.SHA256Hex(canon.MustJSON(m))
}

// SideEffecting reports whether the manifest is tagged side_effecting.
func (m *Manifest) SideEffecting() bool {
	for _, t := range m.Tags {
		if t == SideEffectingTag {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of spec.md §3/§4.B that are not
// already enforced by JSON-Schema compilation (done by the caller, see
// Load): kind-specific required fields and adapter_uri scheme.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest missing name")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %q missing version", m.Name)
	}
	switch m.Kind {
	case KindHTTP:
		if err := validateEndpoint(m.Endpoint); err != nil {
			return fmt.Errorf("manifest %s: %w", m.FQDN(), err)
		}
	case KindInproc:
		if m.Entrypoint == "" {
			return fmt.Errorf("manifest %s: in-process tool missing entrypoint", m.FQDN())
		}
		if m.ModelRef == nil {
			return fmt.Errorf("manifest %s: in-process tool missing model descriptor", m.FQDN())
		}
		if err := m.ModelRef.validate(); err != nil {
			return fmt.Errorf("manifest %s: %w", m.FQDN(), err)
		}
	default:
		return fmt.Errorf("manifest %s: unknown kind %q", m.FQDN(), m.Kind)
	}
	if len(m.InputSchema) == 0 {
		return fmt.Errorf("manifest %s: missing input_schema", m.FQDN())
	}
	if len(m.OutputSchema) == 0 {
		return fmt.Errorf("manifest %s: missing output_schema", m.FQDN())
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("http tool missing endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("http tool endpoint %q is not a well-formed URL", endpoint)
	}
	return nil
}

func (m *Model) validate() error {
	if m.BaseID == "" {
		return fmt.Errorf("model missing base_id")
	}
	if m.AdapterURI == "" {
		return fmt.Errorf("model missing adapter_uri")
	}
	scheme, _, ok := strings.Cut(m.AdapterURI, "://")
	if !ok {
		return fmt.Errorf("model adapter_uri %q missing scheme", m.AdapterURI)
	}
	switch scheme {
	case SchemeHF, SchemeS3, SchemeGS, SchemeFile:
	default:
		return fmt.Errorf("model adapter_uri %q has unsupported scheme %q", m.AdapterURI, scheme)
	}
	if m.Loader != "peft-lora" {
		return fmt.Errorf("model loader %q is not supported (want peft-lora)", m.Loader)
	}
	return nil
}
