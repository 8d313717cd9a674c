package scaling

import (
	"errors"
	"fmt"

	"agrifood.ai/internal/sim/adoption"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/series"
)

var ErrEmptySelection = errors.New("empty item selection")

// Options configures Balanced.
type Options struct {
	// Items to scale. Nil scales every item.
	Items   []int
	Element fbs.Element
	// Scale is the multiplier, or the end value of the adoption curve when
	// Adoption is set.
	Scale float64
	// Year is where the adoption curve starts. Zero means the last year.
	Year      int
	Adoption  adoption.Shape
	Timescale int
	// Origin receives the change in Element.
	Origin fbs.Flow
	// Constant holds the sheet-wide total of Element by scaling the
	// complement of Items.
	Constant bool
	// Fallback absorbs negative values left in Origin.
	Fallback *fbs.Flow
}

// Balanced scales Element for the selected items and forwards the change to
// the origin element. The input sheet is not modified.
func Balanced(sheet *fbs.Sheet, opt Options) (*fbs.Sheet, []diag.Warning, error) {
	var warns []diag.Warning

	years := sheet.Years()
	if len(years) == 0 {
		return nil, nil, fmt.Errorf("balanced scaling: sheet has no years")
	}
	for _, e := range []fbs.Element{opt.Element, opt.Origin.Element} {
		if !sheet.HasElement(e) {
			return nil, nil, fmt.Errorf("balanced scaling: %w: %s", fbs.ErrUnknownElement, e)
		}
	}
	if opt.Fallback != nil && !sheet.HasElement(opt.Fallback.Element) {
		return nil, nil, fmt.Errorf("balanced scaling: fallback %w: %s", fbs.ErrUnknownElement, opt.Fallback.Element)
	}

	items := opt.Items
	constant := opt.Constant
	if items != nil && len(items) == 0 {
		if constant {
			return nil, nil, fmt.Errorf("balanced scaling: %w with constant total", ErrEmptySelection)
		}
		return sheet.Clone(), nil, nil
	}
	if constant && sheet.NumItems() == 1 {
		warns = append(warns, diag.New(diag.CodeSingleItem, "cannot keep %s constant on a single-item sheet", opt.Element))
		constant = false
	}
	if items == nil {
		if constant {
			warns = append(warns, diag.New(diag.CodeAllItems, "cannot keep %s constant when scaling all items", opt.Element))
			constant = false
		}
	} else {
		for _, c := range items {
			if !sheet.HasItem(c) {
				return nil, nil, fmt.Errorf("balanced scaling: %w: %d", fbs.ErrUnknownItem, c)
			}
		}
		if len(sheet.Complement(items)) == 0 && constant {
			warns = append(warns, diag.New(diag.CodeAllItems, "cannot keep %s constant when scaling all items", opt.Element))
			constant = false
		}
	}

	scale, err := scaleSeries(years, opt)
	if err != nil {
		return nil, nil, err
	}

	out, err := sheet.ScaleAdd(opt.Element, opt.Origin.Element, scale, items, opt.Origin.Sign)
	if err != nil {
		return nil, nil, fmt.Errorf("balanced scaling: %w", err)
	}

	if constant {
		rest := sheet.Complement(items)
		base, _ := sheet.Total(opt.Element, rest)
		before, _ := sheet.Total(opt.Element, items)
		after, _ := out.Total(opt.Element, items)
		delta := after.Sub(before)

		comp := series.New(years)
		degenerate, negative := false, false
		for j, y := range years {
			b := base.At(y)
			remaining := b - delta.At(y)
			if !series.Finite(remaining / b) {
				degenerate = true
			}
			f := series.SafeRatio(remaining, b)
			if f < 0 {
				negative = true
			}
			comp.Values[j] = f
		}
		if degenerate {
			warns = append(warns, diag.New(diag.CodeDegenerate, "non-selected %s total is zero in some years; no compensation applied", opt.Element))
		}
		if negative {
			warns = append(warns, diag.New(diag.CodeUncompensable, "the change in %s cannot be absorbed by the remaining items without going negative", opt.Element))
		}
		out, err = out.ScaleAdd(opt.Element, opt.Origin.Element, comp, rest, opt.Origin.Sign)
		if err != nil {
			return nil, nil, fmt.Errorf("balanced scaling: compensate: %w", err)
		}
	}

	if opt.Fallback != nil {
		out, _, err = out.Clamp(opt.Origin.Element, *opt.Fallback)
		if err != nil {
			return nil, nil, fmt.Errorf("balanced scaling: fallback: %w", err)
		}
	} else if n := out.Negatives(opt.Origin.Element); n > 0 {
		warns = append(warns, diag.New(diag.CodeNegativeOrigin, "%s is negative in %d cells and no fallback is set", opt.Origin.Element, n))
	}
	return out, warns, nil
}

func scaleSeries(years []int, opt Options) (series.Series, error) {
	if opt.Adoption == adoption.None {
		return series.Const(years, opt.Scale), nil
	}
	start := opt.Year
	if start == 0 {
		start = years[len(years)-1]
	}
	s, err := adoption.Ramp(years, start, opt.Timescale, 1, opt.Scale, opt.Adoption)
	if err != nil {
		return series.Series{}, fmt.Errorf("balanced scaling: %w", err)
	}
	return s, nil
}
