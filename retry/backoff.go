package retry

import (
	"math"
	"math/rand"
)

// BackoffDelays returns the sequence of `retries` backoff delays in
// milliseconds for attempts i in [0, retries): delay_i = backoff_ms*2^i +
// Uniform(0, jitter_ms). jitter_ms == 0 means zero jitter, matching
// spec.md §4.E and §8's closed-form property
// BackoffDelays(n, b, 0) == [b, 2b, 4b, ..., 2^(n-1)*b].
//
// Grounded on the teacher's calculateBackoff in runtime/a2a/retry/retry.go,
// generalized from a single next-delay computation to the full delay
// sequence the scheduler consumes up front.
func BackoffDelays(retries int, backoffMs, jitterMs int64) []int64 {
	if retries <= 0 {
		return nil
	}
	delays := make([]int64, retries)
	for i := 0; i < retries; i++ {
		base := float64(backoffMs) * math.Pow(2, float64(i))
		delays[i] = int64(base) + jitterAmount(jitterMs)
	}
	return delays
}

// jitterAmount returns a random integer in [0, jitterMs). jitterMs <= 0
// yields zero jitter deterministically.
func jitterAmount(jitterMs int64) int64 {
	if jitterMs <= 0 {
		return 0
	}
	return rand.Int63n(jitterMs) //nolint:gosec // jitter does not need crypto randomness
}
