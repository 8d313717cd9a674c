package scaling

import (
	"errors"
	"fmt"
	"math"

	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/series"
)

var ErrBadShares = errors.New("destination shares must be non-negative and sum to 1")

// Destination receives Share of the change in the scaled element.
type Destination struct {
	Flow  fbs.Flow
	Share float64
}

// ItemScaling scales one element for a subset of items and forwards the
// change to one or two destinations.
type ItemScaling struct {
	Element      fbs.Element
	Items        []int
	Scale        series.Series
	Destinations []Destination
}

// Elasticity splits a change between two flows: share goes to elastic, the
// rest to inelastic.
func Elasticity(share float64, elastic, inelastic fbs.Flow) []Destination {
	return []Destination{
		{Flow: elastic, Share: share},
		{Flow: inelastic, Share: 1 - share},
	}
}

// Items applies the item scaling to sheet. Negative destination values are clamped to
// zero and reported; the clamped amount is not redistributed.
func Items(sheet *fbs.Sheet, is ItemScaling) (*fbs.Sheet, []diag.Warning, error) {
	if len(is.Destinations) == 0 {
		return nil, nil, fmt.Errorf("item scaling: %w: no destination", ErrBadShares)
	}
	var total float64
	for _, d := range is.Destinations {
		if d.Share < 0 || math.IsNaN(d.Share) {
			return nil, nil, fmt.Errorf("item scaling: %w", ErrBadShares)
		}
		if d.Flow.Element == is.Element {
			return nil, nil, fmt.Errorf("item scaling: destination %s is the scaled element", d.Flow.Element)
		}
		total += d.Share
	}
	if math.Abs(total-1) > 1e-9 {
		return nil, nil, fmt.Errorf("item scaling: %w (got %g)", ErrBadShares, total)
	}

	// Scale into a scratch copy, then forward the exact per-cell change.
	scaled, err := sheet.ScaleAdd(is.Element, is.Destinations[0].Flow.Element, is.Scale, is.Items, fbs.Add)
	if err != nil {
		return nil, nil, fmt.Errorf("item scaling: %w", err)
	}
	out := sheet.Clone()
	codes := is.Items
	if codes == nil {
		codes = sheet.Codes()
	}
	clamped := make([]int, len(is.Destinations))
	for _, c := range codes {
		for _, y := range sheet.Years() {
			after := scaled.Get(is.Element, c, y)
			delta := series.SafeDelta(after - sheet.Get(is.Element, c, y))
			if err := out.Set(is.Element, c, y, after); err != nil {
				return nil, nil, fmt.Errorf("item scaling: %w", err)
			}
			if delta == 0 {
				continue
			}
			remaining := delta
			for k, d := range is.Destinations {
				part := delta * d.Share
				if k == len(is.Destinations)-1 {
					part = remaining
				}
				remaining -= part
				cur := out.Get(d.Flow.Element, c, y)
				next := cur + part
				if d.Flow.Sign == fbs.Subtract {
					next = cur - part
				}
				if next < 0 {
					clamped[k]++
					next = 0
				}
				if err := out.Set(d.Flow.Element, c, y, next); err != nil {
					return nil, nil, fmt.Errorf("item scaling: %w", err)
				}
			}
		}
	}

	var warns []diag.Warning
	for k, n := range clamped {
		if n > 0 {
			warns = append(warns, diag.New(diag.CodeNegativeDest, "%s went negative in %d cells and was clamped to zero",
				is.Destinations[k].Flow.Element, n))
		}
	}
	return out, warns, nil
}
