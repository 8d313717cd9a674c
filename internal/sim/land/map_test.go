package land

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMap(t *testing.T) (*Map, *Grid) {
	t.Helper()
	m, err := NewMap(2, 2, []string{Arable, ImprovedGrassland, Broadleaf})
	require.NoError(t, err)
	g := NewGrid(2, 2)
	cells := []struct {
		arable, grass, wood, grade float64
	}{
		{60, 30, 10, 3},
		{20, 70, 10, 4},
		{0, 50, 50, 5},
		{math.NaN(), math.NaN(), math.NaN(), math.NaN()},
	}
	for i, c := range cells {
		require.NoError(t, m.Set(Arable, i, c.arable))
		require.NoError(t, m.Set(ImprovedGrassland, i, c.grass))
		require.NoError(t, m.Set(Broadleaf, i, c.wood))
		g.Values[i] = c.grade
	}
	return m, g
}

func TestMoveConservesCellTotals(t *testing.T) {
	m, g := newTestMap(t)
	before := make([]float64, m.Cells())
	for i := range before {
		before[i] = m.CellTotal(i)
	}

	require.True(t, m.EnsureClass(Spared))
	assert.True(t, math.IsNaN(m.Get(Spared, 3)))
	assert.Equal(t, 0.0, m.Get(Spared, 0))

	amounts, err := m.Share(ImprovedGrassland, 0.5, g.Mask([]float64{4, 5}))
	require.NoError(t, err)
	moved, err := m.Move(ImprovedGrassland, Spared, amounts)
	require.NoError(t, err)
	assert.Equal(t, 60.0, moved)

	for i := range before {
		assert.InDelta(t, before[i], m.CellTotal(i), 1e-12, "cell %d", i)
	}
	assert.Equal(t, 30.0, m.Get(ImprovedGrassland, 0))
	assert.Equal(t, 35.0, m.Get(Spared, 1))
	assert.Equal(t, 60.0, m.Area(Spared))
	assert.Equal(t, 90.0, m.Area(ImprovedGrassland))
}

func TestMoveClampsToSource(t *testing.T) {
	m, _ := newTestMap(t)
	moved, err := m.Move(Broadleaf, Arable, []float64{100, 0, -5, 3})
	require.NoError(t, err)
	assert.Equal(t, 10.0, moved)
	assert.Equal(t, 0.0, m.Get(Broadleaf, 0))
	assert.Equal(t, 70.0, m.Get(Arable, 0))

	_, err = m.Move("Urban", Arable, make([]float64, 4))
	require.ErrorIs(t, err, ErrUnknownClass)
	_, err = m.Move(Arable, Broadleaf, []float64{1})
	require.ErrorIs(t, err, ErrShape)
}

func TestCloneIsDeep(t *testing.T) {
	m, _ := newTestMap(t)
	c := m.Clone()
	require.NoError(t, c.Set(Arable, 0, 1))
	assert.Equal(t, 60.0, m.Get(Arable, 0))
	assert.False(t, c.EnsureClass(Arable))
}
