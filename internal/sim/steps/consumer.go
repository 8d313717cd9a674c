package steps

import (
	"fmt"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/scaling"
	"agrifood.ai/internal/sim/series"
)

// Item codes the consumer steps refer to.
const (
	BovineMeat   = 2731
	MuttonGoat   = 2732
	CulturedCode = 5000
)

var RuminantItems = []int{BovineMeat, MuttonGoat}

var CulturedMeatItem = fbs.Item{
	Code:   CulturedCode,
	Name:   "Cultured meat",
	Group:  fbs.OriginCultured,
	Origin: fbs.OriginCultured,
}

var (
	consumerOrigin   = fbs.Flow{Element: fbs.Production, Sign: fbs.Add}
	consumerFallback = fbs.Flow{Element: fbs.Exports, Sign: fbs.Subtract}
)

// ProjectFuture extends the per-capita sheets and emission factors to Years,
// holding the last known values.
type ProjectFuture struct {
	Years []int
}

func (ProjectFuture) Name() string { return "project_future" }

func (s ProjectFuture) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	for _, p := range datablock.PerCapita {
		sh, err := db.Sheet(p)
		if err != nil {
			return nil, err
		}
		if err := db.Write(p, sh.ExtendYears(s.Years)); err != nil {
			return nil, err
		}
	}
	t, err := db.Table(datablock.EmissionFactors)
	if err != nil {
		return nil, err
	}
	return db, db.Write(datablock.EmissionFactors, t.ExtendYears(s.Years))
}

// shiftConsumption runs a balanced scaling on the nutrient sheet held
// constant, then carries the change into the other per-capita sheets.
func shiftConsumption(db *datablock.DataBlock, nutrient datablock.Path, opt scaling.Options) error {
	if nutrient == nil {
		nutrient = datablock.FoodKcal
	}
	orig, err := db.Sheet(nutrient)
	if err != nil {
		return err
	}
	out, warns, err := scaling.Balanced(orig, opt)
	if err != nil {
		return err
	}
	db.Warn(warns...)
	return settle(db, out, orig)
}

// settle rebalances feed, seed and processing, moves negative production
// into imports and applies out/orig to the per-capita sheets.
func settle(db *datablock.DataBlock, out, orig *fbs.Sheet) error {
	out, err := rebalance(out, orig)
	if err != nil {
		return err
	}
	if out, err = clampProduction(out); err != nil {
		return err
	}
	return applyRatio(db, out, orig)
}

// RuminantReduction cuts ruminant meat consumption by Percent, replacing it
// with every other item so the nutrient total is unchanged.
type RuminantReduction struct {
	Percent  float64
	Items    []int
	Nutrient datablock.Path
	Ramp     Ramp
}

func (RuminantReduction) Name() string { return "ruminant_consumption" }

func (s RuminantReduction) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("ruminant percent", s.Percent/100); err != nil {
		return nil, err
	}
	items := s.Items
	if items == nil {
		items = RuminantItems
	}
	start, span, err := s.Ramp.window(db)
	if err != nil {
		return nil, err
	}
	err = shiftConsumption(db, s.Nutrient, scaling.Options{
		Items:     items,
		Element:   fbs.Food,
		Scale:     1 - s.Percent/100,
		Year:      start,
		Adoption:  s.Ramp.Shape,
		Timescale: span,
		Origin:    consumerOrigin,
		Constant:  true,
		Fallback:  &consumerFallback,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// MeatFreeDays removes meat on Days days of the week, replacing it with the
// rest of the diet.
type MeatFreeDays struct {
	Days       int
	Group      string
	ExtraItems []int
	Nutrient   datablock.Path
	Ramp       Ramp
}

func (MeatFreeDays) Name() string { return "meat_free_days" }

func (s MeatFreeDays) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if s.Days < 0 || s.Days > 7 {
		return nil, fmt.Errorf("%w: meat free days must be within [0, 7], got %d", ErrParam, s.Days)
	}
	nutrient := s.Nutrient
	if nutrient == nil {
		nutrient = datablock.FoodKcal
	}
	sh, err := db.Sheet(nutrient)
	if err != nil {
		return nil, err
	}
	group := s.Group
	if group == "" {
		group = "Meat"
	}
	items := append(nonNil(sh.ByGroup(group)), s.ExtraItems...)
	if len(items) == 0 {
		db.Warn(diag.New(diag.CodeDegenerate, "no %s items for meat free days", group))
		return db, nil
	}
	start, span, err := s.Ramp.window(db)
	if err != nil {
		return nil, err
	}
	err = shiftConsumption(db, nutrient, scaling.Options{
		Items:     items,
		Element:   fbs.Food,
		Scale:     1 - float64(s.Days)/7,
		Year:      start,
		Adoption:  s.Ramp.Shape,
		Timescale: span,
		Origin:    consumerOrigin,
		Constant:  true,
		Fallback:  &consumerFallback,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GroupConsumption changes consumption of a set of groups or items by
// Percent (negative to reduce), compensated by the rest of the diet.
type GroupConsumption struct {
	Label    string
	Groups   []string
	Items    []int
	Percent  float64
	Nutrient datablock.Path
	Ramp     Ramp
}

func (s GroupConsumption) Name() string { return "group_consumption:" + s.Label }

func (s GroupConsumption) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if s.Percent < -100 || !series.Finite(s.Percent) {
		return nil, fmt.Errorf("%w: %s percent %g", ErrParam, s.Label, s.Percent)
	}
	nutrient := s.Nutrient
	if nutrient == nil {
		nutrient = datablock.FoodKcal
	}
	sh, err := db.Sheet(nutrient)
	if err != nil {
		return nil, err
	}
	items := append([]int{}, s.Items...)
	for _, g := range s.Groups {
		items = append(items, sh.ByGroup(g)...)
	}
	if len(items) == 0 {
		db.Warn(diag.New(diag.CodeDegenerate, "%s selects no items", s.Label))
		return db, nil
	}
	start, span, err := s.Ramp.window(db)
	if err != nil {
		return nil, err
	}
	err = shiftConsumption(db, nutrient, scaling.Options{
		Items:     items,
		Element:   fbs.Food,
		Scale:     1 + s.Percent/100,
		Year:      start,
		Adoption:  s.Ramp.Shape,
		Timescale: span,
		Origin:    consumerOrigin,
		Constant:  true,
		Fallback:  &consumerFallback,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// FoodWaste cuts energy intake above RDAKcal by Percent of the excess.
type FoodWaste struct {
	Percent float64
	RDAKcal float64
	Ramp    Ramp
}

func (FoodWaste) Name() string { return "food_waste" }

func (s FoodWaste) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("waste percent", s.Percent/100); err != nil {
		return nil, err
	}
	orig, err := db.Sheet(datablock.FoodKcal)
	if err != nil {
		return nil, err
	}
	if err := db.Write(datablock.FoodRDA, s.RDAKcal); err != nil {
		return nil, err
	}
	yrs := orig.Years()
	total, err := orig.Total(fbs.Food, nil)
	if err != nil {
		return nil, err
	}
	last := total.At(yrs[len(yrs)-1])
	factor := (last - s.RDAKcal) / last * (s.Percent / 100)
	if !series.Finite(factor) {
		db.Warn(diag.New(diag.CodeDegenerate, "no energy intake in the last year; waste reduction skipped"))
		factor = 0
	}
	if factor < 0 {
		factor = 0
	}
	scale, err := s.Ramp.curve(db, yrs, 1, 1-factor)
	if err != nil {
		return nil, err
	}
	out, err := orig.ScaleAdd(fbs.Food, fbs.Production, scale, nil, fbs.Add)
	if err != nil {
		return nil, err
	}
	if err := settle(db, out, orig); err != nil {
		return nil, err
	}
	return db, nil
}

// CulturedMeat replaces Percent of ruminant meat (and ExtraItems) with
// cultured meat, weight for weight.
type CulturedMeat struct {
	Percent        float64
	EmissionFactor float64
	ExtraItems     []int
	Ramp           Ramp
}

func (CulturedMeat) Name() string { return "cultured_meat" }

func (s CulturedMeat) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("cultured percent", s.Percent/100); err != nil {
		return nil, err
	}
	for _, p := range datablock.PerCapita {
		sh, err := db.Sheet(p)
		if err != nil {
			return nil, err
		}
		if sh.HasItem(CulturedCode) {
			continue
		}
		sh = sh.Clone()
		if err := sh.AddItem(CulturedMeatItem); err != nil {
			return nil, err
		}
		if err := db.Write(p, sh); err != nil {
			return nil, err
		}
	}

	orig, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return nil, err
	}
	replaced := append(append([]int{}, RuminantItems...), s.ExtraItems...)
	scale, err := s.Ramp.curve(db, orig.Years(), 1, 1-s.Percent/100)
	if err != nil {
		return nil, err
	}
	out, err := orig.ScaleAdd(fbs.Food, fbs.Production, scale, replaced, fbs.Add)
	if err != nil {
		return nil, err
	}
	if out, err = clampProduction(out); err != nil {
		return nil, err
	}
	for _, e := range out.Elements() {
		before, err := orig.Total(e, replaced)
		if err != nil {
			return nil, err
		}
		after, err := out.Total(e, replaced)
		if err != nil {
			return nil, err
		}
		moved := before.Sub(after)
		for _, y := range out.Years() {
			v := out.Get(e, CulturedCode, y) + series.SafeDelta(moved.At(y))
			if err := out.Set(e, CulturedCode, y, v); err != nil {
				return nil, err
			}
		}
	}
	if err := db.Write(datablock.FoodGrams, out); err != nil {
		return nil, err
	}

	for _, nf := range datablock.NutrientFactors {
		f, err := db.Vector(nf.Factor)
		if err != nil {
			return nil, err
		}
		if !f.HasItem(CulturedCode) {
			f = f.Clone()
			if err := f.AddItem(CulturedMeatItem, series.SafeDelta(f.Get(BovineMeat))); err != nil {
				return nil, err
			}
			if err := db.Write(nf.Factor, f); err != nil {
				return nil, err
			}
		}
		if err := db.Write(nf.Sheet, out.MulVector(f)); err != nil {
			return nil, err
		}
	}

	ef, err := db.Table(datablock.EmissionFactors)
	if err != nil {
		return nil, err
	}
	if !ef.HasItem(CulturedCode) {
		ef = ef.Clone()
		if err := ef.AddItem(CulturedMeatItem, s.EmissionFactor); err != nil {
			return nil, err
		}
		if err := db.Write(datablock.EmissionFactors, ef); err != nil {
			return nil, err
		}
	}
	return db, nil
}
