package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 0.5, SafeRatio(1, 2))
	assert.Equal(t, 1.0, SafeRatio(1, 0))
	assert.Equal(t, 1.0, SafeRatio(0, 0))
	assert.Equal(t, 1.0, SafeRatio(math.NaN(), 3))
	assert.Equal(t, 0.0, SafeDelta(math.NaN()))
	assert.Equal(t, 0.0, SafeDelta(math.Inf(-1)))
	assert.Equal(t, -2.0, SafeDelta(-2))
}

func TestAlignmentYieldsNaN(t *testing.T) {
	a := Const([]int{2020, 2021, 2022}, 2)
	b := Const([]int{2020, 2022}, 4)

	sum := a.Add(b)
	require.Equal(t, 3, sum.Len())
	assert.Equal(t, 6.0, sum.At(2020))
	assert.True(t, math.IsNaN(sum.At(2021)))
	assert.Equal(t, 12.0, sum.Sum())

	r, coerced := Ratio(a, b)
	assert.True(t, coerced)
	assert.Equal(t, 0.5, r.At(2020))
	assert.Equal(t, 1.0, r.At(2021))
}

func TestSumBetween(t *testing.T) {
	s := Const(Range(2018, 2025), 1)
	assert.Equal(t, 5.0, s.SumBetween(2020, 2025))
	assert.Equal(t, 2018, s.First())
	assert.Equal(t, 2025, s.Last())
	assert.True(t, math.IsNaN(s.At(2030)))
}
