package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/goa-ai/modelloader"
	"goa.design/goa-ai/registry"
	"goa.design/goa-ai/tool"
)

func TestStaticFactory_BuildsRegisteredImplementation(t *testing.T) {
	t.Parallel()

	impls := map[string]tool.Func{
		"echo.v1": func(_ context.Context, payload any) (any, error) {
			return payload, nil
		},
	}
	f := tool.StaticFactory(impls)

	m := inprocManifest()
	built, err := f.Build(m, nil, tool.Preloaded{})
	require.NoError(t, err)
	assert.Equal(t, m, built.Manifest())
}

func TestStaticFactory_UnregisteredFQDNErrors(t *testing.T) {
	t.Parallel()

	f := tool.StaticFactory(map[string]tool.Func{})

	_, err := f.Build(inprocManifest(), nil, tool.Preloaded{})
	assert.Error(t, err)
}

func TestFactoryFunc_AdaptsPlainFunction(t *testing.T) {
	t.Parallel()

	var gotLoader modelloader.Loader
	f := tool.FactoryFunc(func(m *registry.Manifest, loader modelloader.Loader, preloaded tool.Preloaded) (tool.Tool, error) {
		gotLoader = loader
		return nil, nil
	})

	_, err := f.Build(inprocManifest(), nil, tool.Preloaded{})
	require.NoError(t, err)
	assert.Nil(t, gotLoader)
}
