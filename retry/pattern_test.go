package retry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/retry"
)

func TestParsePattern_ValidPatterns(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"ToolCallError",
		"ToolCallError:500",
		"ToolCallError:5xx",
		"SchemaError",
		"SchemaError:PRE",
		"SchemaError:POST",
		"EngineError",
		"BudgetError",
	} {
		_, err := retry.ParsePattern(s)
		assert.NoError(t, err, "pattern %q", s)
	}
}

func TestParsePattern_UnknownClassIsPlanSchemaError(t *testing.T) {
	t.Parallel()

	_, err := retry.ParsePattern("NotAClass")
	var pse *perr.PlanSchemaError
	assert.ErrorAs(t, err, &pse)
}

func TestParsePattern_InvalidToolCallSpec(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"ToolCallError:abc", "ToolCallError:55x", "ToolCallError:x5xx"} {
		_, err := retry.ParsePattern(s)
		assert.Error(t, err, "pattern %q", s)
	}
}

func TestParsePattern_SchemaErrorRejectsBadStage(t *testing.T) {
	t.Parallel()

	_, err := retry.ParsePattern("SchemaError:WRONG")
	assert.Error(t, err)
}

func TestParsePattern_ClassWithNoSpecRejectsOne(t *testing.T) {
	t.Parallel()

	_, err := retry.ParsePattern("EngineError:oops")
	assert.Error(t, err)
}

func TestMatcher_ToolCallErrorExactStatus(t *testing.T) {
	t.Parallel()

	patterns, err := retry.ParsePatterns([]string{"ToolCallError:500"})
	require.NoError(t, err)
	m := retry.NewMatcher(patterns)

	assert.True(t, m.Match(perr.NewToolCallError(500, "", "", nil)))
	assert.False(t, m.Match(perr.NewToolCallError(501, "", "", nil)))
}

func TestMatcher_ToolCallErrorFamily(t *testing.T) {
	t.Parallel()

	patterns, err := retry.ParsePatterns([]string{"ToolCallError:5xx"})
	require.NoError(t, err)
	m := retry.NewMatcher(patterns)

	assert.True(t, m.Match(perr.NewToolCallError(500, "", "", nil)))
	assert.True(t, m.Match(perr.NewToolCallError(599, "", "", nil)))
	assert.False(t, m.Match(perr.NewToolCallError(404, "", "", nil)))
	assert.False(t, m.Match(perr.NewToolCallError(0, "", "", nil)))
}

func TestMatcher_ToolCallErrorNoSpecMatchesAny(t *testing.T) {
	t.Parallel()

	patterns, err := retry.ParsePatterns([]string{"ToolCallError"})
	require.NoError(t, err)
	m := retry.NewMatcher(patterns)

	assert.True(t, m.Match(perr.NewToolCallError(0, "", "dial error", nil)))
}

func TestMatcher_SchemaErrorStage(t *testing.T) {
	t.Parallel()

	patterns, err := retry.ParsePatterns([]string{"SchemaError:PRE"})
	require.NoError(t, err)
	m := retry.NewMatcher(patterns)

	assert.True(t, m.Match(perr.NewSchemaError(perr.StagePre, "bad", nil)))
	assert.False(t, m.Match(perr.NewSchemaError(perr.StagePost, "bad", nil)))
}

func TestMatcher_ClassMismatchNeverMatches(t *testing.T) {
	t.Parallel()

	patterns, err := retry.ParsePatterns([]string{"BudgetError"})
	require.NoError(t, err)
	m := retry.NewMatcher(patterns)

	assert.False(t, m.Match(perr.NewToolCallError(500, "", "", nil)))
	assert.True(t, m.Match(perr.NewBudgetError("deadline")))
}

func TestMatcher_MatchesWhenAnyPatternMatches(t *testing.T) {
	t.Parallel()

	patterns, err := retry.ParsePatterns([]string{"EngineError", "ToolCallError:500"})
	require.NoError(t, err)
	m := retry.NewMatcher(patterns)

	assert.True(t, m.Match(perr.NewToolCallError(500, "", "", nil)))
	assert.True(t, m.Match(perr.NewEngineError("x", nil)))
}
