package repetition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountFiniteExhaustsOnNthConsume(t *testing.T) {
	t.Parallel()
	for n := uint64(1); n <= 20; n++ {
		c := Finite(n)
		for i := uint64(1); i < n; i++ {
			assert.False(t, c.Consume(), "Finite(%d) exhausted early on consume %d", n, i)
		}
		assert.True(t, c.Consume(), "Finite(%d) not exhausted on consume %d", n, n)
	}
}

func TestCountFiniteZeroSaturates(t *testing.T) {
	t.Parallel()
	c := Finite(0)
	assert.True(t, c.Consume())
	assert.True(t, c.Consume())
	n, ok := c.Remaining()
	assert.True(t, ok)
	assert.Equal(t, uint64(0), n)
}

func TestCountInfiniteNeverExhausts(t *testing.T) {
	t.Parallel()
	var c Count
	assert.True(t, c.IsInfinite(), "zero value should be infinite")
	for i := 0; i < 1000; i++ {
		assert.False(t, c.Consume())
	}
	_, ok := c.Remaining()
	assert.False(t, ok)
}
