package baseline

import (
	"math"

	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/series"
)

type demoItem struct {
	item                         fbs.Item
	flows                        map[fbs.Element]float64
	kcal, protein, fat, co2ePerG float64
}

func animal(code int, name, group string) fbs.Item {
	return fbs.Item{Code: code, Name: name, Group: group, Origin: fbs.OriginAnimal}
}

func vegetal(code int, name, group string) fbs.Item {
	return fbs.Item{Code: code, Name: name, Group: group, Origin: fbs.OriginVegetal}
}

// UK-like national supply, 1000 t/yr.
var demoItems = []demoItem{
	{animal(2731, "Bovine Meat", "Meat"),
		map[fbs.Element]float64{fbs.Production: 900, fbs.Imports: 350, fbs.Exports: 130, fbs.Food: 1100, fbs.Losses: 20},
		2.5, 0.26, 0.15, 35},
	{animal(2732, "Mutton & Goat Meat", "Meat"),
		map[fbs.Element]float64{fbs.Production: 290, fbs.Imports: 90, fbs.Exports: 100, fbs.Food: 280},
		2.9, 0.25, 0.21, 24},
	{animal(2733, "Pigmeat", "Meat"),
		map[fbs.Element]float64{fbs.Production: 930, fbs.Imports: 800, fbs.Exports: 230, fbs.Food: 1450, fbs.Processing: 50},
		2.6, 0.2, 0.2, 7},
	{animal(2734, "Poultry Meat", "Meat"),
		map[fbs.Element]float64{fbs.Production: 1850, fbs.Imports: 470, fbs.Exports: 380, fbs.Food: 1900, fbs.Losses: 40},
		1.9, 0.2, 0.12, 6},
	{animal(2948, "Milk - Excluding Butter", "Milk - Excluding Butter"),
		map[fbs.Element]float64{fbs.Production: 15000, fbs.Imports: 1200, fbs.Exports: 1600, fbs.Food: 12000, fbs.Processing: 2500, fbs.Losses: 100},
		0.6, 0.033, 0.035, 1.4},
	{animal(2744, "Eggs", "Eggs"),
		map[fbs.Element]float64{fbs.Production: 800, fbs.Imports: 80, fbs.Exports: 40, fbs.Food: 790, fbs.Losses: 50},
		1.4, 0.12, 0.1, 4.5},
	{vegetal(2511, "Wheat and products", "Cereals - Excluding Beer"),
		map[fbs.Element]float64{fbs.Production: 14000, fbs.Imports: 2000, fbs.Exports: 1500, fbs.Food: 6000, fbs.Feed: 6500, fbs.Seed: 300, fbs.Processing: 1500, fbs.Other: 200},
		3.4, 0.11, 0.015, 0.6},
	{vegetal(2513, "Barley and products", "Cereals - Excluding Beer"),
		map[fbs.Element]float64{fbs.Production: 7500, fbs.Imports: 100, fbs.Exports: 1300, fbs.Food: 50, fbs.Feed: 4200, fbs.Seed: 250, fbs.Processing: 1800},
		3.5, 0.1, 0.02, 0.6},
	{vegetal(2531, "Potatoes and products", "Starchy Roots"),
		map[fbs.Element]float64{fbs.Production: 5500, fbs.Imports: 1800, fbs.Exports: 500, fbs.Food: 5800, fbs.Feed: 300, fbs.Seed: 400, fbs.Losses: 300},
		0.77, 0.02, 0.001, 0.3},
	{vegetal(2617, "Apples and products", "Fruits - Excluding Wine"),
		map[fbs.Element]float64{fbs.Production: 250, fbs.Imports: 450, fbs.Exports: 20, fbs.Food: 660, fbs.Losses: 20},
		0.52, 0.003, 0.002, 0.4},
	{vegetal(2605, "Vegetables, other", "Vegetables"),
		map[fbs.Element]float64{fbs.Production: 2500, fbs.Imports: 2200, fbs.Exports: 100, fbs.Food: 4300, fbs.Losses: 300},
		0.3, 0.015, 0.003, 0.5},
	{vegetal(2547, "Peas", "Pulses"),
		map[fbs.Element]float64{fbs.Production: 300, fbs.Imports: 200, fbs.Exports: 150, fbs.Food: 250, fbs.Feed: 100},
		3.4, 0.22, 0.012, 0.9},
}

const demoSide = 8

// Demo returns a small self-contained dataset with UK-like magnitudes over
// 2010-2020, population to 2100 and an 8x8 km land raster whose last cell
// lies outside the domain.
func Demo() *Dataset {
	years := series.Range(2010, 2020)
	ds := &Dataset{Name: "demo", Years: years}
	for _, di := range demoItems {
		ds.Items = append(ds.Items, di.item)
		for _, e := range fbs.Elements {
			v, ok := di.flows[e]
			if !ok {
				continue
			}
			for _, y := range years {
				ds.Flows = append(ds.Flows, Flow{Code: di.item.Code, Element: e, Year: y, Tonnes: v})
			}
		}
		ds.Nutrients = append(ds.Nutrients, Nutrient{Code: di.item.Code, Kcal: di.kcal, Protein: di.protein, Fat: di.fat})
		ds.Emissions = append(ds.Emissions, EmissionFactor{Code: di.item.Code, Factor: di.co2ePerG})
	}
	for y := 2010; y <= 2100; y++ {
		p := 63e6 + 0.4e6*float64(min(y, 2020)-2010)
		if y > 2020 {
			p += 0.15e6 * float64(y-2020)
		}
		ds.Population = append(ds.Population, Population{Year: y, People: p})
	}
	ds.Land = demoLand()
	return ds
}

func demoLand() Land {
	l := Land{
		Width:   demoSide,
		Height:  demoSide,
		Classes: []string{land.Arable, land.ImprovedGrassland, land.SemiNaturalGrassland, land.Broadleaf, land.Coniferous},
		Grades:  make([]float64, demoSide*demoSide),
	}
	last := demoSide*demoSide - 1
	for cell := range l.Grades {
		if cell == last {
			l.Grades[cell] = math.NaN()
			continue
		}
		x, y := cell%demoSide, cell/demoSide
		k := float64((x + 2*y) % 5)
		l.Grades[cell] = k + 1
		l.Cover = append(l.Cover,
			Cover{cell, land.Arable, 70 - 10*k},
			Cover{cell, land.ImprovedGrassland, 15 + 5*k},
			Cover{cell, land.SemiNaturalGrassland, 5 * k},
			Cover{cell, land.Broadleaf, 10},
			Cover{cell, land.Coniferous, 5},
		)
	}
	return l
}
