package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalJSONPlan = `{
  "version": "1",
  "graph": [
    {"id": "fetch", "tool": "http.get.v1"},
    {"id": "summarize", "tool": "llm.summarize.v1", "needs": ["fetch"]}
  ]
}`

const minimalYAMLPlan = `
version: "1"
graph:
  - id: fetch
    tool: http.get.v1
  - id: summarize
    tool: llm.summarize.v1
    needs: [fetch]
`

func TestParse_JSON(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(minimalJSONPlan))
	require.NoError(t, err)
	require.Len(t, p.Graph, 2)
	assert.Equal(t, "fetch", p.Graph[0].ID)
	assert.Equal(t, "summarize", p.Graph[1].ID)
	assert.Equal(t, []string{"fetch"}, p.Graph[1].Needs)
}

func TestParse_YAML(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(minimalYAMLPlan))
	require.NoError(t, err)
	require.Len(t, p.Graph, 2)
	assert.Equal(t, "http.get.v1", p.Graph[0].Tool)
}

func TestParse_RejectsUnknownTopLevelKey(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"version":"1","graph":[],"bogus":true}`))
	require.Error(t, err)
	assertPlanSchemaError(t, err)
}

func TestParse_RejectsUnknownNodeKey(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"version":"1","graph":[{"id":"a","tool":"t","bogus":1}]}`))
	require.Error(t, err)
	assertPlanSchemaError(t, err)
}

func TestParse_RequiresVersionAndGraph(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{}`))
	require.Error(t, err)
	assertPlanSchemaError(t, err)
}

func TestParse_RejectsMalformedDocument(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{not json or yaml: [`))
	require.Error(t, err)
}
