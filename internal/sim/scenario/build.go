package scenario

import (
	"fmt"
	"sort"

	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/series"
	"agrifood.ai/internal/sim/steps"
	"agrifood.ai/internal/sim/tuning"
)

// Items produced on the tree cover of agroecological land.
var (
	SilvopastureItem = fbs.Item{Code: 5101, Name: "Silvopasture fruit and nuts", Group: "Treenuts", Origin: fbs.OriginVegetal}
	AgroforestryItem = fbs.Item{Code: 5102, Name: "Agroforestry fruit", Group: "Fruits - Excluding Wine", Origin: fbs.OriginVegetal}
)

// consultation groups, by lever.
var (
	dairyGroups     = []string{"Milk - Excluding Butter", "Butter, Ghee", "Cream"}
	pigPoultryItems = []int{2733, 2734}
	eggGroups       = []string{"Eggs"}
	fruitVegGroups  = []string{"Fruits - Excluding Wine", "Vegetables"}
	cerealGroups    = []string{"Cereals - Excluding Beer"}
)

// Build returns the steps for levers in their fixed order: consumer demand,
// land, technology, practices, then accounting.
func Build(l Levers, t tuning.Tuning) ([]pipeline.Step, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("levers: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	nutrient, err := t.Nutrient()
	if err != nil {
		return nil, err
	}
	shape := t.Shape()
	ramp := steps.Ramp{Start: t.PivotYear, Shape: shape}
	late := steps.Ramp{Start: t.PivotYear, Offset: t.InnovationOffset, Shape: shape}

	out := []pipeline.Step{
		steps.ProjectFuture{Years: series.Range(t.PivotYear, t.Horizon)},
		steps.RuminantReduction{Percent: l.Ruminant, Items: steps.RuminantItems, Nutrient: nutrient, Ramp: ramp},
		steps.MeatFreeDays{Days: l.MeatFreeDays, ExtraItems: l.MeatFreeExtra, Nutrient: nutrient, Ramp: ramp},
	}
	for _, g := range []struct {
		label   string
		groups  []string
		items   []int
		percent float64
	}{
		{"dairy", dairyGroups, nil, l.Dairy},
		{"pig_poultry_eggs", eggGroups, pigPoultryItems, l.PigPoultryEggs},
		{"fruit_veg", fruitVegGroups, nil, l.FruitVeg},
		{"cereals", cerealGroups, nil, l.Cereals},
	} {
		if g.percent == 0 {
			continue
		}
		out = append(out, steps.GroupConsumption{
			Label: g.label, Groups: g.groups, Items: g.items,
			Percent: g.percent, Nutrient: nutrient, Ramp: ramp,
		})
	}
	out = append(out,
		steps.FoodWaste{Percent: l.Waste, RDAKcal: t.RDAKcal, Ramp: ramp},
		steps.CulturedMeat{Percent: l.Cultured, EmissionFactor: t.LabmeatCO2e, ExtraItems: l.CulturedExtra, Ramp: ramp},

		steps.SpareLand{
			Label:    "pasture",
			Classes:  []string{land.ImprovedGrassland, land.SemiNaturalGrassland},
			Grades:   t.SpareGrades,
			Fraction: l.PastureSparing / 100,
			Origin:   fbs.OriginAnimal,
			Ramp:     ramp,
		},
		steps.SpareLand{
			Label:    "arable",
			Classes:  []string{land.Arable},
			Grades:   t.SpareGrades,
			Fraction: l.ArableSparing / 100,
			Origin:   fbs.OriginVegetal,
			Ramp:     ramp,
		},
		steps.ForestSpared{Fraction: l.ForestSpared / 100, BroadleafShare: t.BroadleafShare / 100},
	)

	agro := map[string]string{}
	if l.Silvopasture > 0 {
		out = append(out, steps.Agroecology{
			Label:          "silvopasture",
			Class:          land.ImprovedGrassland,
			Target:         land.Silvopasture,
			Fraction:       l.Silvopasture / 100,
			TreeCoverage:   t.Agroecology.TreeCoverage,
			ReplacedItems:  steps.RuminantItems,
			NewItem:        SilvopastureItem,
			Yield:          t.Agroecology.SilvopastureYield,
			Ramp:           ramp,
		})
		agro[land.Silvopasture] = steps.SourceSilvopasture
	}
	if l.Agroforestry > 0 {
		out = append(out, steps.Agroecology{
			Label:          "agroforestry",
			Class:          land.Arable,
			Target:         land.Agroforestry,
			Fraction:       l.Agroforestry / 100,
			TreeCoverage:   t.Agroecology.TreeCoverage,
			ReplacedOrigin: fbs.OriginVegetal,
			NewItem:        AgroforestryItem,
			Yield:          t.Agroecology.AgroforestryYield,
			Ramp:           ramp,
		})
		agro[land.Agroforestry] = steps.SourceAgroforestry
	}

	out = append(out,
		steps.BECCSLand{Fraction: l.LandBECCS / 100, Origin: fbs.OriginVegetal, Ramp: late},
		steps.CCS{
			WasteBECCS:    l.WasteBECCS * 1e6,
			OverseasBECCS: l.OverseasBECCS * 1e6,
			DACCS:         l.DACCS * 1e6,
			LandYield:     t.BECCSYield,
			BECCSCost:     costCurve(t.BECCSCost),
			DACCSCost:     costCurve(t.DACCSCost),
			Ramp:          ramp,
		},
		steps.ScaleImpact{Origin: fbs.OriginVegetal, Factor: 1 - t.MaxGHGEPlant*l.PlantInnovation/400, Ramp: late},
		steps.ScaleImpact{Origin: fbs.OriginAnimal, Factor: 1 - t.MaxGHGEAnimal*l.AnimalInnovation/400, Ramp: late},
	)

	names := make([]string, 0, len(l.Practices))
	for name := range l.Practices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, ok := t.Practice(name)
		if !ok {
			return nil, fmt.Errorf("%w: practice %q", ErrUnknownLever, name)
		}
		out = append(out, steps.Practice{
			Label:      name,
			Origin:     p.ItemOrigin(),
			Adoption:   l.Practices[name] / 100,
			ProdFactor: p.Prod,
			GHGFactor:  p.GHG,
			Elasticity: t.Elasticity,
			Ramp:       late,
		})
	}

	out = append(out, steps.ForestSequestration{BroadleafRate: t.BroadleafSeq, ConiferousRate: t.ConiferousSeq, Ramp: ramp})
	if len(agro) > 0 {
		out = append(out, steps.AgroecologySequestration{Classes: agro, Rate: t.Agroecology.Sequestration, Ramp: ramp})
	}
	out = append(out, steps.ComputeEmissions{})
	return out, nil
}

func costCurve(c tuning.CostCurve) steps.CostCurve {
	return steps.CostCurve{FromYear: c.FromYear, ToYear: c.ToYear, From: c.From, To: c.To}
}
