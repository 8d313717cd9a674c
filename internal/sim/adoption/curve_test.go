package adoption

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearBoundaries(t *testing.T) {
	c, err := Curve(2000, 2020, 2030, 2050, 1, 0.5, Linear)
	require.NoError(t, err)
	require.Equal(t, 51, c.Len())

	assert.Equal(t, 1.0, c.At(2000))
	assert.Equal(t, 1.0, c.At(2020))
	assert.InDelta(t, 0.75, c.At(2025), 1e-12)
	assert.Equal(t, 0.5, c.At(2030))
	assert.Equal(t, 0.5, c.At(2050))
}

func TestLogisticWithinEpsilon(t *testing.T) {
	c, err := Curve(2000, 2020, 2040, 2100, 0, 10, Logistic)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, c.At(2019), 1e-12)
	assert.InDelta(t, 10*Epsilon, c.At(2020), 1e-9)
	assert.InDelta(t, 5, c.At(2030), 1e-9)
	assert.InDelta(t, 10*(1-Epsilon), c.At(2040), 1e-9)
	assert.Equal(t, 10.0, c.At(2041))
}

func TestMonotonic(t *testing.T) {
	for _, shape := range []Shape{Linear, Logistic} {
		up, err := Curve(2000, 2010, 2030, 2040, 1, 3, shape)
		require.NoError(t, err)
		down, err := Curve(2000, 2010, 2030, 2040, 3, 1, shape)
		require.NoError(t, err)
		for i := 1; i < up.Len(); i++ {
			assert.GreaterOrEqual(t, up.Values[i], up.Values[i-1], "%s up at %d", shape, up.Years[i])
			assert.LessOrEqual(t, down.Values[i], down.Values[i-1], "%s down at %d", shape, down.Years[i])
		}
	}
}

func TestWindowClippedToHorizon(t *testing.T) {
	c, err := Curve(2000, 2090, 2120, 2100, 1, 0, Linear)
	require.NoError(t, err)
	assert.Equal(t, 2100, c.Last())
	assert.Equal(t, 0.0, c.At(2100))
	assert.InDelta(t, 0.5, c.At(2095), 1e-12)
}

func TestStepWhenWindowIsEmpty(t *testing.T) {
	c, err := Ramp([]int{2019, 2020, 2021}, 2020, 0, 1, 2, Logistic)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.At(2019))
	assert.Equal(t, 2.0, c.At(2020))
	assert.Equal(t, 2.0, c.At(2021))
}

func TestUnknownShape(t *testing.T) {
	_, err := ParseShape("cubic")
	require.True(t, errors.Is(err, ErrUnknownShape))

	_, err = Curve(2000, 2010, 2020, 2030, 0, 1, None)
	require.True(t, errors.Is(err, ErrUnknownShape))

	var s Shape
	require.NoError(t, s.UnmarshalText([]byte("Logistic")))
	assert.Equal(t, Logistic, s)
}
