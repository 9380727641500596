package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/registry"
)

// HTTPTool invokes a tool manifest of kind "http": it validates the payload
// against the input schema, POSTs it as JSON, and validates the response
// against the output schema. Grounded on the teacher's A2A HTTP client
// shape (structured errors distinguishing network failure from non-2xx
// response) and, for the optional limiter, on
// features/model/middleware/ratelimit.go's AdaptiveRateLimiter, generalized
// from a per-model-provider token bucket to an optional per-tool one.
type HTTPTool struct {
	manifest *registry.Manifest
	client   *http.Client
	input    *compiledSchema
	output   *compiledSchema
	limiter  *rate.Limiter
}

// HTTPOption configures an HTTPTool.
type HTTPOption func(*HTTPTool)

// WithHTTPClient overrides the default http.Client (e.g. for tests).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTool) { t.client = c }
}

// WithRateLimit caps outbound requests to this tool at rps requests per
// second, smoothing bursts the way features/model/middleware's
// AdaptiveRateLimiter smooths provider calls. A zero or negative rps
// disables limiting (the default).
func WithRateLimit(rps float64) HTTPOption {
	return func(t *HTTPTool) {
		if rps > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewHTTPTool compiles the manifest's schemas and returns a ready HTTPTool.
func NewHTTPTool(m *registry.Manifest, opts ...HTTPOption) (*HTTPTool, error) {
	if m.Kind != registry.KindHTTP {
		return nil, fmt.Errorf("tool %s: not an http manifest", m.FQDN())
	}
	in, err := compile(m.FQDN()+"#input", m.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", m.FQDN(), err)
	}
	out, err := compile(m.FQDN()+"#output", m.OutputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", m.FQDN(), err)
	}
	t := &HTTPTool{
		manifest: m,
		client:   &http.Client{},
		input:    in,
		output:   out,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Manifest returns the tool's manifest.
func (t *HTTPTool) Manifest() *registry.Manifest { return t.manifest }

// Invoke validates payload, POSTs it to the manifest's endpoint, and
// validates the decoded response. Per spec.md §4.C: a network-layer failure
// becomes ToolCallError{Status: 0}; HTTP status >= 400 becomes
// ToolCallError{Status, Body}; otherwise the response is schema-validated.
func (t *HTTPTool) Invoke(ctx context.Context, payload any, timeout time.Duration) (any, error) {
	if err := t.input.validate(perr.StagePre, payload); err != nil {
		return nil, err
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, perr.NewToolCallError(0, "", "rate limiter wait: "+err.Error(), err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, perr.NewToolCallError(0, "", "encode payload: "+err.Error(), err)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, t.manifest.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, perr.NewToolCallError(0, "", "build request: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, perr.NewToolCallError(0, "", err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.NewToolCallError(resp.StatusCode, "", "read response: "+err.Error(), err)
	}

	if resp.StatusCode >= 400 {
		return nil, perr.NewToolCallError(resp.StatusCode, string(respBody), fmt.Sprintf("tool %s returned status %d", t.manifest.FQDN(), resp.StatusCode), nil)
	}

	var decoded any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return nil, perr.NewToolCallError(resp.StatusCode, string(respBody), "decode response: "+err.Error(), err)
		}
	}
	if err := t.output.validate(perr.StagePost, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
