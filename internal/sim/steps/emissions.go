package steps

import (
	"fmt"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/series"
)

const daysPerYear = 365.25

// ComputeEmissions derives per-capita emissions from consumption and the
// emission factors, and yearly totals from the population.
type ComputeEmissions struct{}

func (ComputeEmissions) Name() string { return "compute_emissions" }

func (ComputeEmissions) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	grams, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return nil, err
	}
	ef, err := db.Table(datablock.EmissionFactors)
	if err != nil {
		return nil, err
	}
	pop, err := db.Series(datablock.PopulationSeries)
	if err != nil {
		return nil, err
	}
	perCap := grams.MulTable(ef)
	if err := db.Write(datablock.FoodCO2e, perCap); err != nil {
		return nil, err
	}
	return db, db.Write(datablock.EmissionsYear, perCap.MulSeries(pop.Scale(daysPerYear)))
}

// ClimateModel turns yearly emissions in Gt CO2e into temperature anomaly,
// concentration and forcing.
type ClimateModel interface {
	Run(gtCO2e series.Series) (t, c, f series.Series, err error)
}

// TemperatureAnomaly runs Model on total production emissions.
type TemperatureAnomaly struct {
	Model ClimateModel
}

func (TemperatureAnomaly) Name() string { return "temperature_anomaly" }

func (s TemperatureAnomaly) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if s.Model == nil {
		return nil, fmt.Errorf("%w: no climate model", ErrParam)
	}
	em, err := db.Sheet(datablock.EmissionsYear)
	if err != nil {
		return nil, err
	}
	total, err := em.Total(fbs.Production, nil)
	if err != nil {
		return nil, err
	}
	t, c, f, err := s.Model.Run(total.Scale(1e-15))
	if err != nil {
		return nil, fmt.Errorf("climate model: %w", err)
	}
	for _, w := range []struct {
		p datablock.Path
		s series.Series
	}{{datablock.Temperature, t}, {datablock.Concentration, c}, {datablock.Forcing, f}} {
		if err := db.Write(w.p, w.s); err != nil {
			return nil, err
		}
	}
	return db, nil
}
