package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
)

var sparePasture = SpareLand{
	Label:    "pasture",
	Classes:  []string{land.ImprovedGrassland, land.SemiNaturalGrassland},
	Grades:   []float64{4, 5},
	Fraction: 0.5,
	Origin:   fbs.OriginAnimal,
}

func landMap(t *testing.T, db *datablock.DataBlock) *land.Map {
	t.Helper()
	m, err := db.LandMap(datablock.LandUse)
	require.NoError(t, err)
	return m
}

func TestSpareLandConservesCellArea(t *testing.T) {
	db := newBlock(t)
	before := landMap(t, db).Clone()
	db, err := sparePasture.Apply(db)
	require.NoError(t, err)

	m := landMap(t, db)
	for i := 0; i < m.Cells(); i++ {
		assert.InDelta(t, before.CellTotal(i), m.CellTotal(i), 1e-9, "cell %d", i)
	}
	assert.InDelta(t, 70, m.Area(land.Spared), 1e-9)
	assert.Equal(t, 0.0, m.Get(land.Spared, 0))
	assert.Equal(t, 40.0, m.Get(land.ImprovedGrassland, 0))
	assert.InDelta(t, 110, m.Area(land.ImprovedGrassland, land.SemiNaturalGrassland), 1e-9)
}

func TestSpareLandShrinksOriginProduction(t *testing.T) {
	db := newBlock(t)
	db, err := sparePasture.Apply(db)
	require.NoError(t, err)

	ratio := 110.0 / 180.0
	g := sheet(t, db, datablock.FoodGrams)
	assert.InDelta(t, 25*ratio, g.Get(fbs.Production, BovineMeat, 2030), 1e-9)
	assert.InDelta(t, 7+25*(1-ratio), g.Get(fbs.Imports, BovineMeat, 2030), 1e-9)
	assert.Equal(t, 400.0, g.Get(fbs.Production, 2511, 2030))
	assert.Equal(t, 30.0, g.Get(fbs.Food, BovineMeat, 2030))

	kcal := sheet(t, db, datablock.FoodKcal)
	assert.InDelta(t, 62.5*ratio, kcal.Get(fbs.Production, BovineMeat, 2030), 1e-9)
}

func TestSpareLandMissingClassWarns(t *testing.T) {
	db := newBlock(t)
	s := sparePasture
	s.Classes = append([]string{"Heathland"}, s.Classes...)
	db, err := s.Apply(db)
	require.NoError(t, err)
	assert.True(t, diag.Has(db.Warnings(), diag.CodeMissingLandClass))
	assert.InDelta(t, 70, landMap(t, db).Area(land.Spared), 1e-9)
}

func TestSpareLandRejectsFraction(t *testing.T) {
	s := sparePasture
	s.Fraction = 1.5
	_, err := s.Apply(newBlock(t))
	assert.ErrorIs(t, err, ErrParam)
}

func TestForestSpared(t *testing.T) {
	db := newBlock(t)
	db, err := sparePasture.Apply(db)
	require.NoError(t, err)
	db, err = ForestSpared{Fraction: 1, BroadleafShare: 0.5}.Apply(db)
	require.NoError(t, err)

	m := landMap(t, db)
	assert.InDelta(t, 0, m.Area(land.Spared), 1e-9)
	assert.InDelta(t, 20+35, m.Area(land.Broadleaf), 1e-9)
	assert.InDelta(t, 10+35, m.Area(land.Coniferous), 1e-9)
}

func TestForestSparedWithoutSparedLandWarns(t *testing.T) {
	db, err := ForestSpared{Fraction: 1, BroadleafShare: 0.5}.Apply(newBlock(t))
	require.NoError(t, err)
	assert.True(t, diag.Has(db.Warnings(), diag.CodeMissingLandClass))
}

func TestBECCSLand(t *testing.T) {
	db, err := BECCSLand{Fraction: 0.2}.Apply(newBlock(t))
	require.NoError(t, err)

	m := landMap(t, db)
	assert.InDelta(t, 18, m.Area(land.BECCS), 1e-9)
	assert.InDelta(t, 72, m.Area(land.Arable), 1e-9)

	g := sheet(t, db, datablock.FoodGrams)
	assert.InDelta(t, 320, g.Get(fbs.Production, 2511, 2030), 1e-9)
	assert.InDelta(t, 140, g.Get(fbs.Imports, 2511, 2030), 1e-9)
	assert.Equal(t, 25.0, g.Get(fbs.Production, BovineMeat, 2030))
}

var agroforestryFruit = fbs.Item{Code: 5101, Name: "Agroforestry fruit", Group: "Fruits - Excluding Wine", Origin: fbs.OriginVegetal}

func TestAgroecologyProducesNewItem(t *testing.T) {
	db, err := Agroecology{
		Label:          "agroforestry",
		Class:          land.Arable,
		Target:         land.Agroforestry,
		Fraction:       0.5,
		TreeCoverage:   0.1,
		ReplacedOrigin: fbs.OriginVegetal,
		NewItem:        agroforestryFruit,
		Yield:          5,
	}.Apply(newBlock(t))
	require.NoError(t, err)

	m := landMap(t, db)
	assert.InDelta(t, 45, m.Area(land.Agroforestry), 1e-9)
	cover, err := db.Scalar(TreeCoveragePath(land.Agroforestry))
	require.NoError(t, err)
	assert.Equal(t, 0.1, cover)

	g := sheet(t, db, datablock.FoodGrams)
	assert.InDelta(t, 400*0.95, g.Get(fbs.Production, 2511, 2030), 1e-9)
	want := 4.5 * 5 * 1e6 / testPopulation / daysPerYear
	assert.InDelta(t, want, g.Get(fbs.Production, agroforestryFruit.Code, 2030), 1e-12)
	assert.InDelta(t, want, g.Get(fbs.Exports, agroforestryFruit.Code, 2030), 1e-12)
	assert.Zero(t, g.Get(fbs.Food, agroforestryFruit.Code, 2030))

	for _, p := range datablock.PerCapita {
		assert.True(t, sheet(t, db, p).HasItem(agroforestryFruit.Code), p.String())
	}
	ef, err := db.Table(datablock.EmissionFactors)
	require.NoError(t, err)
	assert.True(t, ef.HasItem(agroforestryFruit.Code))
}

func TestAgroecologyMissingClassWarns(t *testing.T) {
	db, err := Agroecology{
		Label: "silvopasture", Class: "Orchard", Target: land.Silvopasture,
		Fraction: 0.5, TreeCoverage: 0.1,
	}.Apply(newBlock(t))
	require.NoError(t, err)
	assert.True(t, diag.Has(db.Warnings(), diag.CodeMissingLandClass))
	assert.False(t, landMap(t, db).HasClass(land.Silvopasture))
}

func TestAgroecologyReplacesNamedItemsOnly(t *testing.T) {
	db, err := Agroecology{
		Label:         "silvopasture",
		Class:         land.ImprovedGrassland,
		Target:        land.Silvopasture,
		Fraction:      0.5,
		TreeCoverage:  0.2,
		ReplacedItems: []int{BovineMeat},
	}.Apply(newBlock(t))
	require.NoError(t, err)

	// 130 ha of improved grassland, 65 converted, 13 under trees.
	ratio := 117.0 / 130.0
	g := sheet(t, db, datablock.FoodGrams)
	assert.InDelta(t, 25*ratio, g.Get(fbs.Production, BovineMeat, 2030), 1e-9)
	assert.InDelta(t, 7+25*(1-ratio), g.Get(fbs.Imports, BovineMeat, 2030), 1e-9)
	assert.Equal(t, 9.0, g.Get(fbs.Production, MuttonGoat, 2030))
	assert.Equal(t, 25.0, g.Get(fbs.Production, 2733, 2030))
	assert.Equal(t, 320.0, g.Get(fbs.Production, 2948, 2030))
	assert.Equal(t, 400.0, g.Get(fbs.Production, 2511, 2030))
}

func TestAgroecologyUnknownReplacedItem(t *testing.T) {
	_, err := Agroecology{
		Label: "silvopasture", Class: land.ImprovedGrassland, Target: land.Silvopasture,
		Fraction: 0.5, TreeCoverage: 0.2, ReplacedItems: []int{9999},
	}.Apply(newBlock(t))
	assert.ErrorIs(t, err, fbs.ErrUnknownItem)
}

func allArableToAgroforestry(t *testing.T) *datablock.DataBlock {
	t.Helper()
	db, err := Agroecology{
		Label: "agroforestry", Class: land.Arable, Target: land.Agroforestry,
		Fraction: 1, TreeCoverage: 0.1, ReplacedOrigin: fbs.OriginVegetal,
	}.Apply(newBlock(t))
	require.NoError(t, err)
	require.Zero(t, landMap(t, db).Area(land.Arable))
	return db
}

func TestBECCSLandZeroFractionIsNoop(t *testing.T) {
	db := allArableToAgroforestry(t)
	before := len(db.Warnings())
	db, err := BECCSLand{Fraction: 0}.Apply(db)
	require.NoError(t, err)
	assert.Len(t, db.Warnings(), before)
	assert.False(t, landMap(t, db).HasClass(land.BECCS))
}

func TestBECCSLandWithoutArableAreaNamesClass(t *testing.T) {
	db, err := BECCSLand{Fraction: 0.2}.Apply(allArableToAgroforestry(t))
	require.NoError(t, err)

	var found bool
	for _, w := range db.Warnings() {
		if w.Code == diag.CodeDegenerate {
			found = true
			assert.Contains(t, w.Message, land.Arable)
			assert.NotContains(t, w.Message, fbs.OriginVegetal)
		}
	}
	assert.True(t, found)
}
