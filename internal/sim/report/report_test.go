package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/ledger"
	"agrifood.ai/internal/sim/series"
	"agrifood.ai/internal/sim/steps"
)

var (
	years = series.Range(2020, 2030)
	beef  = fbs.Item{Code: 2731, Name: "Bovine Meat", Group: "Meat", Origin: fbs.OriginAnimal}
	wheat = fbs.Item{Code: 2511, Name: "Wheat", Group: "Cereals", Origin: fbs.OriginVegetal}
)

func newBlock(t *testing.T) *datablock.DataBlock {
	t.Helper()
	items := []fbs.Item{beef, wheat}
	grams, err := fbs.NewSheet(items, years)
	require.NoError(t, err)
	em, err := fbs.NewSheet(items, years)
	require.NoError(t, err)
	for _, y := range years {
		beefFood := 40.0
		if y == 2030 {
			beefFood = 30
		}
		require.NoError(t, grams.Set(fbs.Food, beef.Code, y, beefFood))
		require.NoError(t, grams.Set(fbs.Production, beef.Code, y, 20))
		require.NoError(t, grams.Set(fbs.Imports, beef.Code, y, 20))
		require.NoError(t, grams.Set(fbs.Food, wheat.Code, y, 200))
		require.NoError(t, grams.Set(fbs.Production, wheat.Code, y, 180))
		require.NoError(t, grams.Set(fbs.Imports, wheat.Code, y, 20))
		require.NoError(t, em.Set(fbs.Production, beef.Code, y, 3e12))
		require.NoError(t, em.Set(fbs.Production, wheat.Code, y, 1e12))
	}

	m, err := land.NewMap(2, 1, []string{land.Arable, land.Spared, land.Broadleaf, land.Coniferous})
	require.NoError(t, err)
	require.NoError(t, m.Set(land.Arable, 0, 60))
	require.NoError(t, m.Set(land.Spared, 0, 20))
	require.NoError(t, m.Set(land.Broadleaf, 0, 10))
	require.NoError(t, m.Set(land.Coniferous, 1, 5))

	seq := ledger.New(years)
	require.NoError(t, seq.Append(steps.SourceBroadleaf, series.Const(years, 100)))
	require.NoError(t, seq.Append(steps.SourceDACCS, series.Const(years, 1000)))
	cost := ledger.New(years)
	require.NoError(t, cost.Append(steps.SourceDACCS, series.Const(years, 2e5)))

	db := datablock.New()
	for _, w := range []struct {
		p datablock.Path
		v any
	}{
		{datablock.FoodGrams, grams},
		{datablock.EmissionsYear, em},
		{datablock.LandUse, m},
		{datablock.Sequestration, seq},
		{datablock.Cost, cost},
	} {
		require.NoError(t, db.Write(w.p, w.v))
	}
	return db
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(newBlock(t), 2030)
	require.NoError(t, err)

	assert.Equal(t, 2030, s.Year)
	assert.InDelta(t, 25, s.AnimalFoodChange, 1e-9)
	assert.InDelta(t, 200.0/240*100, s.SelfSufficiency, 1e-9)
	assert.InDelta(t, 20, s.SparedArea, 1e-9)
	assert.InDelta(t, 15, s.ForestArea, 1e-9)
	assert.InDelta(t, 100, s.ForestSequestration, 1e-9)
	assert.InDelta(t, 1000, s.CCSSequestration, 1e-9)
	assert.InDelta(t, 10*2e5, s.CCSSpending, 1e-6)
	assert.InDelta(t, 4e6, s.GrossEmissions, 1e-6)
	assert.InDelta(t, 4e6-1100, s.NetEmissions, 1e-6)
	assert.Zero(t, s.Kcal)
}

func TestSummarizeBaselineOnly(t *testing.T) {
	full := newBlock(t)
	grams, err := full.Sheet(datablock.FoodGrams)
	require.NoError(t, err)
	db := datablock.New()
	require.NoError(t, db.Write(datablock.FoodGrams, grams))

	s, err := Summarize(db, 2025)
	require.NoError(t, err)
	assert.Zero(t, s.AnimalFoodChange)
	assert.Zero(t, s.ForestSequestration)
	assert.Zero(t, s.CCSSpending)
	assert.Zero(t, s.NetEmissions)
}

func TestSummarizeRequiresConsumption(t *testing.T) {
	_, err := Summarize(datablock.New(), 2030)
	assert.ErrorIs(t, err, datablock.ErrMissing)
}

func TestEmissionsWithoutLedger(t *testing.T) {
	db := newBlock(t)
	require.NoError(t, db.Write(datablock.Sequestration, ledger.New(years)))
	gross, net, err := Emissions(db)
	require.NoError(t, err)
	assert.Equal(t, gross.Values, net.Values)
}
