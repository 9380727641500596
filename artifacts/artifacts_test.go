package artifacts

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root, "2026-08-01", "run-1")
	require.NoError(t, err)

	assert.DirExists(t, s.Root())
	assert.DirExists(t, filepath.Join(s.Root(), "nodes"))
	assert.Equal(t, filepath.Join(s.Root(), "outputs"), s.OutputsDir())
	assert.DirExists(t, s.OutputsDir())
}

func TestRunInfo_RoundTrip(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), "2026-08-01", "run-1")
	require.NoError(t, err)

	_, ok, err := s.ReadRunInfo()
	require.NoError(t, err)
	assert.False(t, ok)

	want := RunInfo{InputsHash: "abc", RegistryHash: "def", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.WriteRunInfo(want))

	got, ok, err := s.ReadRunInfo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.InputsHash, got.InputsHash)
	assert.Equal(t, want.RegistryHash, got.RegistryHash)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestNodeResponse_RoundTrip(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), "2026-08-01", "run-1")
	require.NoError(t, err)

	_, ok, err := s.ReadNodeResponse("fetch")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteNodeRequest("fetch", map[string]any{"url": "https://example.com"}))
	want := NodeResponse{Tool: "http.get.v1", Data: map[string]any{"status": float64(200)}, Ms: 42}
	require.NoError(t, s.WriteNodeResponse("fetch", want))

	got, ok, err := s.ReadNodeResponse("fetch")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Tool, got.Tool)
	assert.Equal(t, want.Ms, got.Ms)
}

func TestPreflightError_UsesSentinelNodeID(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), "2026-08-01", "run-1")
	require.NoError(t, err)

	require.NoError(t, s.WritePreflightError(NodeError{Class: "RegistryError", Message: "boom"}))
	assert.FileExists(t, filepath.Join(s.Root(), "nodes", PreflightNodeID+".error.json"))
}

func TestPaths_OnlyIncludesExistingArtifacts(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), "2026-08-01", "run-1")
	require.NoError(t, err)

	require.NoError(t, s.WriteNodeRequest("a", map[string]any{}))
	require.NoError(t, s.WriteNodeResponse("a", NodeResponse{Tool: "t"}))
	require.NoError(t, s.WriteNodeError("b", NodeError{Class: "ToolCallError", Message: "boom"}))

	paths := s.Paths([]string{"a", "b", "c"})
	require.Contains(t, paths, "a")
	assert.Contains(t, paths["a"], "request")
	assert.Contains(t, paths["a"], "response")
	require.Contains(t, paths, "b")
	assert.Contains(t, paths["b"], "error")
	assert.NotContains(t, paths, "c")
}

func TestOpen_ResumesExistingDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s1, err := Open(root, "2026-08-01", "run-1")
	require.NoError(t, err)
	require.NoError(t, s1.WriteRunInfo(RunInfo{InputsHash: "h1", RegistryHash: "h2", CreatedAt: time.Now().UTC()}))

	s2, err := Open(root, "2026-08-01", "run-1")
	require.NoError(t, err)
	info, ok, err := s2.ReadRunInfo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h1", info.InputsHash)
}
