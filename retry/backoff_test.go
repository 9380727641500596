package retry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/goa-ai/retry"
)

func TestBackoffDelays_ZeroJitterIsClosedForm(t *testing.T) {
	t.Parallel()

	got := retry.BackoffDelays(4, 10, 0)
	assert.Equal(t, []int64{10, 20, 40, 80}, got)
}

func TestBackoffDelays_ZeroRetriesIsEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, retry.BackoffDelays(0, 10, 0))
	assert.Nil(t, retry.BackoffDelays(-1, 10, 0))
}

func TestBackoffDelays_JitterStaysWithinBounds(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		delays := retry.BackoffDelays(3, 10, 5)
		bases := []int64{10, 20, 40}
		for i, base := range bases {
			assert.GreaterOrEqual(t, delays[i], base)
			assert.Less(t, delays[i], base+5)
		}
	}
}
