package steps

import (
	"errors"
	"fmt"

	"agrifood.ai/internal/sim/adoption"
	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/series"
)

// PivotYear is the default first year of every intervention.
const PivotYear = 2020

var ErrParam = errors.New("invalid step parameter")

// Ramp says when and how an intervention is adopted. The window runs from
// Start to Start+Offset+timescale, where timescale is read from the data
// block. A None shape applies the end value at once.
type Ramp struct {
	Start  int
	Offset int
	Shape  adoption.Shape
}

// Logistic is the ramp used by the dashboard steps.
func Logistic() Ramp { return Ramp{Start: PivotYear, Shape: adoption.Logistic} }

func (r Ramp) curve(db *datablock.DataBlock, years []int, cInit, cEnd float64) (series.Series, error) {
	if r.Shape == adoption.None {
		return series.Const(years, cEnd), nil
	}
	start, span, err := r.window(db)
	if err != nil {
		return series.Series{}, err
	}
	return adoption.Ramp(years, start, span, cInit, cEnd, r.Shape)
}

// window returns the adoption start year and the length of the window.
func (r Ramp) window(db *datablock.DataBlock) (int, int, error) {
	ts, err := timescale(db)
	if err != nil {
		return 0, 0, err
	}
	start := r.Start
	if start == 0 {
		start = PivotYear
	}
	return start, ts + r.Offset, nil
}

func timescale(db *datablock.DataBlock) (int, error) {
	v, err := db.Scalar(datablock.Timescale)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: timescale %g", ErrParam, v)
	}
	return int(v), nil
}

func checkFraction(name string, v float64) error {
	if !series.Finite(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be within [0, 1], got %g", ErrParam, name, v)
	}
	return nil
}

// rebalance scales feed, seed and processing with the change in animal,
// vegetal and total production, forwarding each change to production.
func rebalance(out, orig *fbs.Sheet) (*fbs.Sheet, error) {
	ratio := func(codes []int) (series.Series, error) {
		a, err := out.Total(fbs.Production, codes)
		if err != nil {
			return series.Series{}, err
		}
		b, err := orig.Total(fbs.Production, codes)
		if err != nil {
			return series.Series{}, err
		}
		r, _ := series.Ratio(a, b)
		return r, nil
	}
	animal := out.ByOrigin(fbs.OriginAnimal)
	vegetal := out.ByOrigin(fbs.OriginVegetal)

	feed, err := ratio(nonNil(animal))
	if err != nil {
		return nil, err
	}
	seed, err := ratio(nonNil(vegetal))
	if err != nil {
		return nil, err
	}
	processing, err := ratio(nil)
	if err != nil {
		return nil, err
	}
	for _, st := range []struct {
		e     fbs.Element
		scale series.Series
	}{{fbs.Feed, feed}, {fbs.Seed, seed}, {fbs.Processing, processing}} {
		out, err = out.ScaleAdd(st.e, fbs.Production, st.scale, nil, fbs.Add)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// nonNil keeps an empty selection from meaning "every item".
func nonNil(codes []int) []int {
	if codes == nil {
		return []int{}
	}
	return codes
}

var toImports = fbs.Flow{Element: fbs.Imports, Sign: fbs.Add}

// clampProduction moves negative production into imports.
func clampProduction(s *fbs.Sheet) (*fbs.Sheet, error) {
	out, _, err := s.Clamp(fbs.Production, toImports)
	return out, err
}

// applyRatio multiplies every per-capita sheet by out/base.
func applyRatio(db *datablock.DataBlock, out, base *fbs.Sheet) error {
	r := out.Ratio(base)
	for _, p := range datablock.PerCapita {
		s, err := db.Sheet(p)
		if err != nil {
			return err
		}
		if err := db.Write(p, s.MulRatio(r)); err != nil {
			return err
		}
	}
	return nil
}

// forwardProduction scales production of codes by scale, buffers the change
// through imports and applies the resulting ratio to the per-capita sheets.
func forwardProduction(db *datablock.DataBlock, codes []int, scale series.Series) error {
	orig, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return err
	}
	out, err := orig.ScaleAdd(fbs.Production, fbs.Imports, scale, nonNil(codes), fbs.Subtract)
	if err != nil {
		return err
	}
	return applyRatio(db, out, orig)
}

func years(db *datablock.DataBlock) ([]int, error) {
	s, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return nil, err
	}
	return s.Years(), nil
}
