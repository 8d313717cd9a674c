// Package report derives the headline metrics of a finished run.
package report

import (
	"math"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/ledger"
	"agrifood.ai/internal/sim/series"
	"agrifood.ai/internal/sim/steps"
)

// BaseYear is the year changes are measured from and spending starts.
const BaseYear = 2020

// Summary holds the metrics shown for a scenario at one year. Emissions and
// sequestration are in t CO2e/yr, areas in ha and spending in £.
type Summary struct {
	Year                int     `json:"year"`
	ForestSequestration float64 `json:"forest_sequestration"`
	CCSSequestration    float64 `json:"ccs_sequestration"`
	SparedArea          float64 `json:"spared_area"`
	ForestArea          float64 `json:"forest_area"`
	CCSSpending         float64 `json:"ccs_spending"`
	AnimalFoodChange    float64 `json:"animal_food_change_pct"`
	SelfSufficiency     float64 `json:"self_sufficiency_pct"`
	Kcal                float64 `json:"kcal_per_capita"`
	GrossEmissions      float64 `json:"gross_emissions"`
	NetEmissions        float64 `json:"net_emissions"`
}

// Summarize computes the Summary at year. Only the consumption sheet is
// required; missing land, ledger or emission data leave their metrics at 0.
func Summarize(db *datablock.DataBlock, year int) (Summary, error) {
	out := Summary{Year: year}

	grams, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return Summary{}, err
	}
	animal, err := grams.Total(fbs.Food, grams.ByOrigin(fbs.OriginAnimal))
	if err != nil {
		return Summary{}, err
	}
	out.AnimalFoodChange = finite(100 - 100*animal.At(year)/animal.At(BaseYear))
	ssr, err := grams.SSR()
	if err != nil {
		return Summary{}, err
	}
	out.SelfSufficiency = finite(100 * ssr.At(year))

	if kcal, err := db.Sheet(datablock.FoodKcal); err == nil {
		t, err := kcal.Total(fbs.Food, nil)
		if err != nil {
			return Summary{}, err
		}
		out.Kcal = finite(t.At(year))
	}

	if m, err := db.LandMap(datablock.LandUse); err == nil {
		out.SparedArea = m.Area(land.Spared)
		out.ForestArea = m.Area(land.Broadleaf, land.Coniferous)
	}

	if seq, err := db.Ledger(datablock.Sequestration); err == nil {
		out.ForestSequestration = sumAt(seq, steps.ForestSources, year)
		out.CCSSequestration = sumAt(seq, steps.CCSSources, year)
	}

	if cost, err := db.Ledger(datablock.Cost); err == nil {
		out.CCSSpending = cost.Total().SumBetween(BaseYear, year)
	}

	if db.Has(datablock.EmissionsYear) {
		gross, net, err := Emissions(db)
		if err != nil {
			return Summary{}, err
		}
		out.GrossEmissions = finite(gross.At(year))
		out.NetEmissions = finite(net.At(year))
	}
	return out, nil
}

// Emissions returns the gross production emissions in t CO2e/yr and the
// same less every sequestration source.
func Emissions(db *datablock.DataBlock) (gross, net series.Series, err error) {
	em, err := db.Sheet(datablock.EmissionsYear)
	if err != nil {
		return series.Series{}, series.Series{}, err
	}
	g, err := em.Total(fbs.Production, nil)
	if err != nil {
		return series.Series{}, series.Series{}, err
	}
	gross = g.Scale(1e-6)
	net = gross.Clone()
	if seq, err := db.Ledger(datablock.Sequestration); err == nil {
		removals := seq.Total()
		net = gross.Map(func(y int, v float64) float64 { return v - finite(removals.At(y)) })
	}
	return gross, net, nil
}

// sumAt adds the named sources at year. Sources the ledger lacks count as 0.
func sumAt(l *ledger.Ledger, sources []string, year int) float64 {
	var t float64
	for _, src := range sources {
		if r, ok := l.Row(src); ok {
			t += finite(r.At(year))
		}
	}
	return t
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
