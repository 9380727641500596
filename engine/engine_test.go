package engine_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/goa-ai/engine"
	"goa.design/goa-ai/perr"
	"goa.design/goa-ai/registry"
	"goa.design/goa-ai/scheduler"
	"goa.design/goa-ai/tool"
)

func writeRegistry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	m := registry.Manifest{
		Name:         "echo",
		Version:      "v1",
		Kind:         registry.KindInproc,
		Entrypoint:   "test.Echo",
		ModelRef:     &registry.Model{BaseID: "base-1", AdapterURI: "file://model", Loader: "peft-lora"},
		InputSchema:  map[string]any{"type": "object"},
		OutputSchema: map[string]any{"type": "object"},
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.json"), raw, 0o644))
	return dir
}

const simplePlan = `{
  "version": "1.0",
  "graph": [
    {"id": "a", "tool": "echo.v1", "inputs": {"text": "hi"}}
  ]
}`

func TestRun_ExecutesPlanEndToEnd(t *testing.T) {
	t.Parallel()

	summary, err := engine.Run(context.Background(), engine.RunRequest{
		PlanSource:   []byte(simplePlan),
		RegistryRoot: writeRegistry(t),
		RunsDir:      t.TempDir(),
		Overrides: map[string]tool.Func{
			"echo.v1": func(_ context.Context, payload any) (any, error) { return payload, nil },
		},
	})
	require.NoError(t, err)
	assert.True(t, summary.OK)
}

func TestRun_InvalidPlanReturnsPlanSchemaError(t *testing.T) {
	t.Parallel()

	_, err := engine.Run(context.Background(), engine.RunRequest{
		PlanSource:   []byte(`{"version": "1.0"}`),
		RegistryRoot: writeRegistry(t),
		RunsDir:      t.TempDir(),
	})
	var pse *perr.PlanSchemaError
	assert.ErrorAs(t, err, &pse)
}

func TestRun_UnresolvableRegistryDirReturnsRegistryError(t *testing.T) {
	t.Parallel()

	_, err := engine.Run(context.Background(), engine.RunRequest{
		PlanSource:   []byte(simplePlan),
		RegistryRoot: filepath.Join(t.TempDir(), "nonexistent"),
		RunsDir:      t.TempDir(),
	})
	var re *perr.RegistryError
	assert.ErrorAs(t, err, &re)
}

func TestRun_MissingRunsDirIsEngineError(t *testing.T) {
	t.Parallel()

	_, err := engine.Run(context.Background(), engine.RunRequest{
		PlanSource:   []byte(simplePlan),
		RegistryRoot: writeRegistry(t),
		Overrides: map[string]tool.Func{
			"echo.v1": func(_ context.Context, payload any) (any, error) { return payload, nil },
		},
	})
	var ee *perr.EngineError
	assert.ErrorAs(t, err, &ee)
}

func TestExitCode_MapsErrorClasses(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, engine.ExitCode(nil))
	assert.Equal(t, 12, engine.ExitCode(perr.NewSchemaError(perr.StagePre, "bad", nil)))
	assert.Equal(t, 13, engine.ExitCode(perr.NewToolCallError(500, "", "boom", nil)))
	assert.Equal(t, 14, engine.ExitCode(perr.NewBudgetError("deadline")))
	assert.Equal(t, 15, engine.ExitCode(perr.NewEngineError("oops", nil)))
	assert.Equal(t, 15, engine.ExitCode(perr.NewRegistryError("missing", nil)))
}

func TestSummaryExitCode_MapsStopReasons(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, engine.SummaryExitCode(&scheduler.Summary{OK: true}))

	deadline := "deadline"
	assert.Equal(t, 14, engine.SummaryExitCode(&scheduler.Summary{OK: false, StopReason: &deadline}))

	preflight := "error:Preflight"
	assert.Equal(t, 15, engine.SummaryExitCode(&scheduler.Summary{OK: false, StopReason: &preflight}))

	toolCall := "error:ToolCallError"
	assert.Equal(t, 13, engine.SummaryExitCode(&scheduler.Summary{OK: false, StopReason: &toolCall}))

	schemaErr := "error:SchemaError"
	assert.Equal(t, 12, engine.SummaryExitCode(&scheduler.Summary{OK: false, StopReason: &schemaErr}))

	assert.Equal(t, 15, engine.SummaryExitCode(&scheduler.Summary{OK: false}))
	assert.Equal(t, 0, engine.SummaryExitCode(nil))
}
