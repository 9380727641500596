package registry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/registry"
)

func writeManifest(t *testing.T, dir, filename string, m registry.Manifest) {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), raw, 0o644))
}

func httpManifest(name, endpoint string) registry.Manifest {
	return registry.Manifest{
		Name:         name,
		Version:      "v1",
		Kind:         registry.KindHTTP,
		Endpoint:     endpoint,
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
	}
}

func TestLoad_ResolvesEveryManifestByFQDN(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", "http://example.com/a"))
	writeManifest(t, dir, "b.json", httpManifest("b", "http://example.com/b"))

	reg, err := registry.Load(dir)
	require.NoError(t, err)

	m, err := reg.Resolve("a.v1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/a", m.Endpoint)

	assert.True(t, reg.Has("b.v1"))
	assert.False(t, reg.Has("missing.v1"))
	assert.Equal(t, []string{"a.v1", "b.v1"}, reg.FQDNs())
}

func TestLoad_RejectsDuplicateFQDN(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", "http://example.com/a"))
	writeManifest(t, dir, "a2.json", httpManifest("a", "http://example.com/a2"))

	_, err := registry.Load(dir)
	var re *perr.RegistryError
	assert.ErrorAs(t, err, &re)
}

func TestLoad_RejectsStructurallyInvalidManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "bad.json", httpManifest("bad", ""))

	_, err := registry.Load(dir)
	var re *perr.RegistryError
	assert.ErrorAs(t, err, &re)
}

func TestLoad_RejectsInvalidJSONSchemaDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := httpManifest("bad", "http://example.com/bad")
	m.InputSchema = map[string]any{"type": "not-a-real-type"}
	writeManifest(t, dir, "bad.json", m)

	_, err := registry.Load(dir)
	var re *perr.RegistryError
	assert.ErrorAs(t, err, &re)
}

func TestLoad_IgnoresNonJSONFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", "http://example.com/a"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a manifest"), 0o644))

	reg, err := registry.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.v1"}, reg.FQDNs())
}

func TestContentHash_IndependentOfFileEnumerationOrder(t *testing.T) {
	t.Parallel()

	dir1 := t.TempDir()
	writeManifest(t, dir1, "a.json", httpManifest("a", "http://example.com/a"))
	writeManifest(t, dir1, "b.json", httpManifest("b", "http://example.com/b"))

	dir2 := t.TempDir()
	writeManifest(t, dir2, "z_b.json", httpManifest("b", "http://example.com/b"))
	writeManifest(t, dir2, "z_a.json", httpManifest("a", "http://example.com/a"))

	reg1, err := registry.Load(dir1)
	require.NoError(t, err)
	reg2, err := registry.Load(dir2)
	require.NoError(t, err)

	assert.Equal(t, reg1.ContentHash(), reg2.ContentHash())
}

func TestContentHash_ChangesWhenAManifestChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", "http://example.com/a"))
	reg1, err := registry.Load(dir)
	require.NoError(t, err)

	writeManifest(t, dir, "a.json", httpManifest("a", "http://example.com/a-changed"))
	reg2, err := registry.Load(dir)
	require.NoError(t, err)

	assert.NotEqual(t, reg1.ContentHash(), reg2.ContentHash())
}

func TestHealth_ReportsTrueOn2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", srv.URL))
	reg, err := registry.Load(dir)
	require.NoError(t, err)

	ok, err := reg.Health(context.Background(), "a.v1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHealth_ReportsFalseOnNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", srv.URL))
	reg, err := registry.Load(dir)
	require.NoError(t, err)

	ok, err := reg.Health(context.Background(), "a.v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealth_ReportsFalseOnNetworkFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", "http://127.0.0.1:1"))
	reg, err := registry.Load(dir)
	require.NoError(t, err)

	ok, err := reg.Health(context.Background(), "a.v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealth_UnknownFQDNIsRegistryError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeManifest(t, dir, "a.json", httpManifest("a", "http://example.com/a"))
	reg, err := registry.Load(dir)
	require.NoError(t, err)

	_, err = reg.Health(context.Background(), "missing.v1")
	var re *perr.RegistryError
	assert.ErrorAs(t, err, &re)
}
