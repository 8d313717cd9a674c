package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/adoption"
	"agrifood.ai/internal/sim/series"
)

func TestRampCurveWindow(t *testing.T) {
	db := newBlock(t)
	for _, r := range []Ramp{
		{Start: 2020, Shape: adoption.Linear},
		{Start: 2022, Offset: 10, Shape: adoption.Logistic},
		{Shape: adoption.Linear},
	} {
		got, err := r.curve(db, testYears, 1, 0.5)
		require.NoError(t, err)
		start := r.Start
		if start == 0 {
			start = PivotYear
		}
		want, err := adoption.Ramp(testYears, start, 5+r.Offset, 1, 0.5, r.Shape)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// 2020 + 5 years, linear.
	got, err := Ramp{Start: 2020, Shape: adoption.Linear}.curve(db, testYears, 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.At(2020))
	assert.InDelta(t, 0.8, got.At(2022), 1e-12)
	assert.Equal(t, 0.5, got.At(2025))
	assert.Equal(t, 0.5, got.At(2030))
}

func TestRampCurveNoneAndEmpty(t *testing.T) {
	db := newBlock(t)
	got, err := immediate().curve(db, testYears, 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, series.Const(testYears, 0.5), got)

	_, err = Ramp{Shape: adoption.Linear}.curve(db, nil, 1, 0.5)
	assert.ErrorIs(t, err, adoption.ErrBadWindow)
}
