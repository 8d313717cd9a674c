package steps

import (
	"testing"

	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/series"
)

const testPopulation = 67e6

var testYears = series.Range(2018, 2030)

type fixtureItem struct {
	item                         fbs.Item
	food, prod, imp, exp         float64
	feed, seed, processing       float64
	kcal, prot, fat, co2ePerGram float64
}

var fixtureItems = []fixtureItem{
	{item: fbs.Item{Code: 2731, Name: "Bovine Meat", Group: "Meat", Origin: fbs.OriginAnimal},
		food: 30, prod: 25, imp: 7, exp: 2, kcal: 2.5, prot: 0.26, fat: 0.15, co2ePerGram: 30},
	{item: fbs.Item{Code: 2732, Name: "Mutton & Goat Meat", Group: "Meat", Origin: fbs.OriginAnimal},
		food: 10, prod: 9, imp: 2, exp: 1, kcal: 2.9, prot: 0.25, fat: 0.21, co2ePerGram: 25},
	{item: fbs.Item{Code: 2733, Name: "Pigmeat", Group: "Meat", Origin: fbs.OriginAnimal},
		food: 40, prod: 25, imp: 17, exp: 2, kcal: 2.6, prot: 0.2, fat: 0.2, co2ePerGram: 6},
	{item: fbs.Item{Code: 2948, Name: "Milk - Excluding Butter", Group: "Milk - Excluding Butter", Origin: fbs.OriginAnimal},
		food: 300, prod: 320, imp: 20, exp: 40, kcal: 0.6, prot: 0.033, fat: 0.035, co2ePerGram: 1.5},
	{item: fbs.Item{Code: 2511, Name: "Wheat and products", Group: "Cereals - Excluding Beer", Origin: fbs.OriginVegetal},
		food: 250, prod: 400, imp: 60, exp: 30, feed: 150, seed: 20, processing: 10, kcal: 3.4, prot: 0.11, fat: 0.015, co2ePerGram: 0.6},
	{item: fbs.Item{Code: 2617, Name: "Apples and products", Group: "Fruits - Excluding Wine", Origin: fbs.OriginVegetal},
		food: 100, prod: 20, imp: 85, exp: 5, kcal: 0.5, prot: 0.003, fat: 0.002, co2ePerGram: 0.4},
}

var fixtureCells = []struct {
	arable, improved, seminatural, broadleaf, coniferous, grade float64
}{
	{50, 40, 0, 10, 0, 3},
	{30, 50, 10, 5, 5, 4},
	{10, 40, 40, 5, 5, 5},
}

// newBlock returns a small baseline: six commodities over 2018-2030, a three
// cell land map and a flat population.
func newBlock(t *testing.T) *datablock.DataBlock {
	t.Helper()
	items := make([]fbs.Item, len(fixtureItems))
	for i, fi := range fixtureItems {
		items[i] = fi.item
	}
	grams, err := fbs.NewSheet(items, testYears)
	require.NoError(t, err)
	kcal, err := fbs.NewVector(items)
	require.NoError(t, err)
	prot, err := fbs.NewVector(items)
	require.NoError(t, err)
	fat, err := fbs.NewVector(items)
	require.NoError(t, err)
	ef, err := fbs.NewTable(items, testYears)
	require.NoError(t, err)

	for _, fi := range fixtureItems {
		c := fi.item.Code
		for _, y := range testYears {
			for e, v := range map[fbs.Element]float64{
				fbs.Food: fi.food, fbs.Production: fi.prod, fbs.Imports: fi.imp, fbs.Exports: fi.exp,
				fbs.Feed: fi.feed, fbs.Seed: fi.seed, fbs.Processing: fi.processing,
			} {
				require.NoError(t, grams.Set(e, c, y, v))
			}
			require.NoError(t, ef.Set(c, y, fi.co2ePerGram))
		}
		require.NoError(t, kcal.Set(c, fi.kcal))
		require.NoError(t, prot.Set(c, fi.prot))
		require.NoError(t, fat.Set(c, fi.fat))
	}

	m, err := land.NewMap(3, 1, []string{land.Arable, land.ImprovedGrassland, land.SemiNaturalGrassland, land.Broadleaf, land.Coniferous})
	require.NoError(t, err)
	grid := land.NewGrid(3, 1)
	for i, c := range fixtureCells {
		require.NoError(t, m.Set(land.Arable, i, c.arable))
		require.NoError(t, m.Set(land.ImprovedGrassland, i, c.improved))
		require.NoError(t, m.Set(land.SemiNaturalGrassland, i, c.seminatural))
		require.NoError(t, m.Set(land.Broadleaf, i, c.broadleaf))
		require.NoError(t, m.Set(land.Coniferous, i, c.coniferous))
		grid.Values[i] = c.grade
	}

	db := datablock.New()
	for _, w := range []struct {
		p datablock.Path
		v any
	}{
		{datablock.FoodGrams, grams},
		{datablock.FoodKcal, grams.MulVector(kcal)},
		{datablock.FoodProtein, grams.MulVector(prot)},
		{datablock.FoodFat, grams.MulVector(fat)},
		{datablock.KcalPerGram, kcal},
		{datablock.ProteinPerGram, prot},
		{datablock.FatPerGram, fat},
		{datablock.EmissionFactors, ef},
		{datablock.LandUse, m},
		{datablock.Classification, grid},
		{datablock.PopulationSeries, series.Const(testYears, testPopulation)},
		{datablock.Timescale, 5.0},
	} {
		require.NoError(t, db.Write(w.p, w.v))
	}
	return db
}

func sheet(t *testing.T, db *datablock.DataBlock, p datablock.Path) *fbs.Sheet {
	t.Helper()
	s, err := db.Sheet(p)
	require.NoError(t, err)
	return s
}

func total(t *testing.T, s *fbs.Sheet, e fbs.Element, codes []int) series.Series {
	t.Helper()
	v, err := s.Total(e, codes)
	require.NoError(t, err)
	return v
}

func immediate() Ramp { return Ramp{} }
