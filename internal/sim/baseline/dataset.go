// Package baseline assembles the baseline data block from a raw dataset
// and caches it for scenario runs.
package baseline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/series"
)

const daysPerYear = 365.25

var ErrInvalid = errors.New("invalid dataset")

// Dataset is the raw baseline as stored: national food balance flows in
// 1000 t/yr, population, per-gram nutrient and emission factors and a land
// cover raster.
type Dataset struct {
	Name       string
	Items      []fbs.Item
	Years      []int
	Flows      []Flow
	Population []Population
	Nutrients  []Nutrient
	Emissions  []EmissionFactor
	Land       Land
}

type Flow struct {
	Code    int
	Element fbs.Element
	Year    int
	Tonnes  float64 // 1000 t/yr
}

type Population struct {
	Year   int
	People float64
}

// Nutrient holds per-gram content of one item.
type Nutrient struct {
	Code    int
	Kcal    float64
	Protein float64
	Fat     float64
}

// EmissionFactor is g CO2e per g of an item.
type EmissionFactor struct {
	Code   int
	Factor float64
}

// Land is a raster of per-class cover percentages with an agricultural land
// classification grade per cell. Cells with no cover are outside the domain.
type Land struct {
	Width, Height int
	Classes       []string
	Cover         []Cover
	Grades        []float64
}

type Cover struct {
	Cell  int
	Class string
	Pct   float64
}

func (ds *Dataset) Validate() error {
	if len(ds.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalid)
	}
	if len(ds.Years) == 0 {
		return fmt.Errorf("%w: no years", ErrInvalid)
	}
	for i := 1; i < len(ds.Years); i++ {
		if ds.Years[i] <= ds.Years[i-1] {
			return fmt.Errorf("%w: years not increasing at %d", ErrInvalid, ds.Years[i])
		}
	}
	codes := make(map[int]bool, len(ds.Items))
	for _, it := range ds.Items {
		if codes[it.Code] {
			return fmt.Errorf("%w: duplicate item %d", ErrInvalid, it.Code)
		}
		codes[it.Code] = true
	}
	years := make(map[int]bool, len(ds.Years))
	for _, y := range ds.Years {
		years[y] = true
	}
	for _, f := range ds.Flows {
		if !codes[f.Code] {
			return fmt.Errorf("%w: flow for unknown item %d", ErrInvalid, f.Code)
		}
		if !years[f.Year] {
			return fmt.Errorf("%w: flow for year %d outside the data years", ErrInvalid, f.Year)
		}
		if _, err := fbs.ParseElement(string(f.Element)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	pop := ds.PopulationSeries()
	for _, y := range ds.Years {
		if v := pop.At(y); !(v > 0) {
			return fmt.Errorf("%w: no population for %d", ErrInvalid, y)
		}
	}
	for _, n := range ds.Nutrients {
		if !codes[n.Code] {
			return fmt.Errorf("%w: nutrients for unknown item %d", ErrInvalid, n.Code)
		}
	}
	for _, e := range ds.Emissions {
		if !codes[e.Code] {
			return fmt.Errorf("%w: emission factor for unknown item %d", ErrInvalid, e.Code)
		}
	}
	return ds.Land.validate()
}

func (l Land) validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("%w: land raster %dx%d", ErrInvalid, l.Width, l.Height)
	}
	if len(l.Grades) != l.Width*l.Height {
		return fmt.Errorf("%w: %d grades for %d cells", ErrInvalid, len(l.Grades), l.Width*l.Height)
	}
	classes := make(map[string]bool, len(l.Classes))
	for _, c := range l.Classes {
		classes[c] = true
	}
	for _, c := range l.Cover {
		if !classes[c.Class] {
			return fmt.Errorf("%w: cover of unknown class %q", ErrInvalid, c.Class)
		}
		if c.Cell < 0 || c.Cell >= l.Width*l.Height {
			return fmt.Errorf("%w: cover cell %d", ErrInvalid, c.Cell)
		}
		if c.Pct < 0 || c.Pct > 100 {
			return fmt.Errorf("%w: cover %g%% in cell %d", ErrInvalid, c.Pct, c.Cell)
		}
	}
	return nil
}

// PopulationSeries returns the population over every year it is given for.
func (ds *Dataset) PopulationSeries() series.Series {
	pts := append([]Population(nil), ds.Population...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Year < pts[j].Year })
	out := series.Series{Years: make([]int, 0, len(pts)), Values: make([]float64, 0, len(pts))}
	for _, p := range pts {
		if n := len(out.Years); n > 0 && out.Years[n-1] == p.Year {
			out.Values[n-1] = p.People
			continue
		}
		out.Years = append(out.Years, p.Year)
		out.Values = append(out.Values, p.People)
	}
	return out
}

// Assemble builds the baseline data block: supply in 1000 t/yr, per-capita
// grams, energy, protein and fat, emission factors, population and land.
func Assemble(ds *Dataset) (*datablock.DataBlock, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	tonnes, err := fbs.NewSheet(ds.Items, ds.Years)
	if err != nil {
		return nil, err
	}
	for _, f := range ds.Flows {
		if err := tonnes.Set(f.Element, f.Code, f.Year, f.Tonnes); err != nil {
			return nil, err
		}
	}

	pop := ds.PopulationSeries()
	// 1000 t = 1e9 g, spread over the population and the days of the year.
	perCapita := series.New(ds.Years).Map(func(y int, _ float64) float64 {
		return 1e9 / (pop.At(y) * daysPerYear)
	})
	grams := tonnes.MulSeries(perCapita)

	kcal, err := fbs.NewVector(ds.Items)
	if err != nil {
		return nil, err
	}
	protein, _ := fbs.NewVector(ds.Items)
	fat, _ := fbs.NewVector(ds.Items)
	for _, n := range ds.Nutrients {
		if err := kcal.Set(n.Code, n.Kcal); err != nil {
			return nil, err
		}
		if err := protein.Set(n.Code, n.Protein); err != nil {
			return nil, err
		}
		if err := fat.Set(n.Code, n.Fat); err != nil {
			return nil, err
		}
	}

	ef, err := fbs.NewTable(ds.Items, ds.Years)
	if err != nil {
		return nil, err
	}
	for _, e := range ds.Emissions {
		for _, y := range ds.Years {
			if err := ef.Set(e.Code, y, e.Factor); err != nil {
				return nil, err
			}
		}
	}

	m, grid, err := ds.Land.raster()
	if err != nil {
		return nil, err
	}

	db := datablock.New()
	for _, w := range []struct {
		p datablock.Path
		v any
	}{
		{datablock.FoodTonnes, tonnes},
		{datablock.FoodGrams, grams},
		{datablock.FoodKcal, grams.MulVector(kcal)},
		{datablock.FoodProtein, grams.MulVector(protein)},
		{datablock.FoodFat, grams.MulVector(fat)},
		{datablock.KcalPerGram, kcal},
		{datablock.ProteinPerGram, protein},
		{datablock.FatPerGram, fat},
		{datablock.EmissionFactors, ef},
		{datablock.PopulationSeries, pop},
		{datablock.LandUse, m},
		{datablock.Classification, grid},
	} {
		if err := db.Write(w.p, w.v); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (l Land) raster() (*land.Map, *land.Grid, error) {
	m, err := land.NewMap(l.Width, l.Height, l.Classes)
	if err != nil {
		return nil, nil, err
	}
	covered := make([]bool, l.Width*l.Height)
	for _, c := range l.Cover {
		covered[c.Cell] = true
	}
	for _, class := range l.Classes {
		for cell, ok := range covered {
			if !ok {
				if err := m.Set(class, cell, math.NaN()); err != nil {
					return nil, nil, err
				}
			}
		}
	}
	for _, c := range l.Cover {
		if err := m.Set(c.Class, c.Cell, c.Pct); err != nil {
			return nil, nil, err
		}
	}
	grid := land.NewGrid(l.Width, l.Height)
	copy(grid.Values, l.Grades)
	return m, grid, nil
}
