package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			seen := make([]int32, n)
			Parallelize(n, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEach(t *testing.T) {
	var sum int64
	require.NoError(t, ForEach(100, 4, func(i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	}))
	assert.Equal(t, int64(4950), sum)
}

func TestForEachReturnsLowestError(t *testing.T) {
	err := ForEach(10, 3, func(i int) error {
		if i == 7 {
			return fmt.Errorf("fail %d", i)
		}
		if i == 3 {
			panic("tree 3 exploded")
		}
		return nil
	})
	require.Error(t, err)

	var panicErr *errors.PanicError
	assert.True(t, errors.As(err, &panicErr))
}
