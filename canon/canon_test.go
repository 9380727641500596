package canon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/goa-ai/canon"
)

func TestJSON_SortsObjectKeys(t *testing.T) {
	t.Parallel()

	b, err := canon.JSON(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(b))
}

func TestJSON_NoInsignificantWhitespace(t *testing.T) {
	t.Parallel()

	b, err := canon.JSON(map[string]any{"a": []any{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2,3]}`, string(b))
}

func TestJSON_KeyOrderIndependence(t *testing.T) {
	t.Parallel()

	b1, err := canon.JSON(map[string]any{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)
	b2, err := canon.JSON(map[string]any{"c": 3, "b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestJSON_NestedObjectsSortedAtEveryLevel(t *testing.T) {
	t.Parallel()

	b, err := canon.JSON(map[string]any{
		"outer": map[string]any{"z": 1, "y": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"y":2,"z":1}}`, string(b))
}

func TestHashJSON_DeterministicAndSensitive(t *testing.T) {
	t.Parallel()

	h1, err := canon.HashJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	h2, err := canon.HashJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, err := canon.HashJSON(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHashSorted_OrderIndependent(t *testing.T) {
	t.Parallel()

	h1 := canon.HashSorted([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	h2 := canon.HashSorted([][]byte{[]byte("c"), []byte("a"), []byte("b")})
	assert.Equal(t, h1, h2)
}

func TestSHA256Hex_IsLowercaseHex(t *testing.T) {
	t.Parallel()

	got := canon.SHA256Hex([]byte("hello"))
	assert.Len(t, got, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, got)
}
