package refexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/goa-ai/perr"
)

func testState() State {
	return State{
		Context: map[string]any{"run_output": "/tmp/out"},
		Vars:    map[string]any{"limit": float64(10)},
		Nodes: map[string]any{
			"fetch": map[string]any{"status": float64(200), "body": map[string]any{"title": "hello"}},
		},
	}
}

func TestInterpolate_WholeReferenceKeepsType(t *testing.T) {
	t.Parallel()

	v, err := Interpolate("${vars.limit}", testState())
	require.NoError(t, err)
	assert.Equal(t, float64(10), v)
}

func TestInterpolate_EmbeddedReferenceStringifies(t *testing.T) {
	t.Parallel()

	v, err := Interpolate("limit is ${vars.limit} items", testState())
	require.NoError(t, err)
	assert.Equal(t, "limit is 10 items", v)
}

func TestInterpolate_NodeReference(t *testing.T) {
	t.Parallel()

	v, err := Interpolate("${fetch.body.title}", testState())
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestInterpolate_NestedMapsAndSlices(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"a": []any{"${vars.limit}", "plain"},
		"b": map[string]any{"c": "${context.run_output}"},
	}
	out, err := Interpolate(in, testState())
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, float64(10), m["a"].([]any)[0])
	assert.Equal(t, "plain", m["a"].([]any)[1])
	assert.Equal(t, "/tmp/out", m["b"].(map[string]any)["c"])
}

func TestInterpolate_UnresolvedReferenceIsSchemaError(t *testing.T) {
	t.Parallel()

	_, err := Interpolate("${ghost.field}", testState())
	require.Error(t, err)
	var se *perr.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, perr.StagePre, se.Stage)
}

func TestInterpolate_MissingNestedKey(t *testing.T) {
	t.Parallel()

	_, err := Interpolate("${fetch.body.missing}", testState())
	require.Error(t, err)
	var se *perr.SchemaError
	require.ErrorAs(t, err, &se)
}

func TestProject_SimplePath(t *testing.T) {
	t.Parallel()

	v := map[string]any{"a": map[string]any{"b": []any{"x", "y", map[string]any{"c": 42}}}}
	got, err := Project("$.a.b[2].c", v)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestProject_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := Project("$.a.missing", map[string]any{"a": map[string]any{}})
	require.Error(t, err)
	var se *perr.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, perr.StagePost, se.Stage)
}

func TestProject_IndexOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := Project("$.a[5]", map[string]any{"a": []any{1, 2}})
	require.Error(t, err)
}

func TestProject_RequiresDollarDotPrefix(t *testing.T) {
	t.Parallel()

	_, err := Project("a.b", map[string]any{})
	require.Error(t, err)
}
