package workpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeVisitsEveryIndexExactlyOnce(t *testing.T) {
	const lo, hi = -3, 12
	var counts [hi - lo + 1]int32

	Range(4, lo, hi, func(i int) {
		atomic.AddInt32(&counts[i-lo], 1)
	})

	for i, c := range counts {
		assert.Equalf(t, int32(1), c, "index %d visited %d times", i+lo, c)
	}
}

func TestRangeEmptyRangeIsNoOp(t *testing.T) {
	called := false
	Range(4, 5, 2, func(i int) { called = true })
	assert.False(t, called)
}

func TestRangeClampsNonPositiveThreadCount(t *testing.T) {
	var hits int32
	Range(0, 0, 9, func(i int) { atomic.AddInt32(&hits, 1) })
	assert.Equal(t, int32(10), hits)
}
