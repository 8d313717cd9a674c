package fbs

import (
	"fmt"
	"math"

	"agrifood.ai/internal/sim/series"
)

// Sheet is a food balance sheet: one Item x Year array per element.
type Sheet struct {
	axes
	data map[Element][]float64
}

// NewSheet returns a zero-filled sheet. With no elements given, every
// element in Elements is allocated.
func NewSheet(items []Item, years []int, elements ...Element) (*Sheet, error) {
	a, err := newAxes(items, years)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		elements = Elements
	}
	s := &Sheet{axes: a, data: make(map[Element][]float64, len(elements))}
	for _, e := range elements {
		if _, err := ParseElement(string(e)); err != nil {
			return nil, err
		}
		s.data[e] = make([]float64, len(a.items)*len(a.years))
	}
	return s, nil
}

func (s *Sheet) Clone() *Sheet {
	out := &Sheet{axes: s.axes.clone(), data: make(map[Element][]float64, len(s.data))}
	for e, v := range s.data {
		out.data[e] = append([]float64(nil), v...)
	}
	return out
}

// Elements returns the allocated elements in canonical order.
func (s *Sheet) Elements() []Element {
	var out []Element
	for _, e := range Elements {
		if _, ok := s.data[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (s *Sheet) HasElement(e Element) bool {
	_, ok := s.data[e]
	return ok
}

func (s *Sheet) element(e Element) ([]float64, error) {
	v, ok := s.data[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownElement, e)
	}
	return v, nil
}

// Get returns NaN for labels the sheet does not hold.
func (s *Sheet) Get(e Element, code, year int) float64 {
	v, ok := s.data[e]
	if !ok {
		return math.NaN()
	}
	k := s.offset(code, year)
	if k < 0 {
		return math.NaN()
	}
	return v[k]
}

func (s *Sheet) Set(e Element, code, year int, val float64) error {
	v, err := s.element(e)
	if err != nil {
		return err
	}
	k := s.offset(code, year)
	if k < 0 {
		return fmt.Errorf("%w: %d@%d", ErrUnknownItem, code, year)
	}
	v[k] = val
	return nil
}

// Row returns a copy of one item's values for element e.
func (s *Sheet) Row(e Element, code int) series.Series {
	out := series.New(s.years)
	v, ok := s.data[e]
	i, ok2 := s.itemIdx[code]
	if !ok || !ok2 {
		for j := range out.Values {
			out.Values[j] = math.NaN()
		}
		return out
	}
	copy(out.Values, v[i*len(s.years):(i+1)*len(s.years)])
	return out
}

// SetRow writes the aligned values of r into one item's row. Years absent
// from r are left untouched.
func (s *Sheet) SetRow(e Element, code int, r series.Series) error {
	v, err := s.element(e)
	if err != nil {
		return err
	}
	i, ok := s.itemIdx[code]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownItem, code)
	}
	for j, y := range s.years {
		if r.Has(y) {
			v[i*len(s.years)+j] = r.At(y)
		}
	}
	return nil
}

// Total sums element e over codes (nil for all items) per year, skipping NaN.
func (s *Sheet) Total(e Element, codes []int) (series.Series, error) {
	v, err := s.element(e)
	if err != nil {
		return series.Series{}, err
	}
	rows, err := s.rows(codes)
	if err != nil {
		return series.Series{}, err
	}
	out := series.New(s.years)
	n := len(s.years)
	for _, i := range rows {
		for j := 0; j < n; j++ {
			if x := v[i*n+j]; !math.IsNaN(x) {
				out.Values[j] += x
			}
		}
	}
	return out, nil
}

// AddItem registers a new item with zero values in every element.
func (s *Sheet) AddItem(it Item) error {
	if err := it.validate(); err != nil {
		return err
	}
	if s.HasItem(it.Code) {
		return fmt.Errorf("%w: %d", ErrDuplicateItem, it.Code)
	}
	s.itemIdx[it.Code] = len(s.items)
	s.items = append(s.items, it)
	for e, v := range s.data {
		s.data[e] = append(v, make([]float64, len(s.years))...)
	}
	return nil
}

// ExtendYears adds years, filling each new year with the values of the
// closest earlier year.
func (s *Sheet) ExtendYears(years []int) *Sheet {
	if len(s.years) == 0 {
		return s.Clone()
	}
	merged, src := s.extendPlan(years)
	out := &Sheet{axes: s.axes.clone(), data: make(map[Element][]float64, len(s.data))}
	out.years = merged
	n, m := len(s.years), len(merged)
	for e, v := range s.data {
		nv := make([]float64, len(s.items)*m)
		for i := range s.items {
			for k := range merged {
				nv[i*m+k] = v[i*n+src[k]]
			}
		}
		out.data[e] = nv
	}
	return out
}

// ScaleAdd multiplies element in by scale for codes (nil for all items) and
// forwards the change to element out with sign: new-old is added to out for
// Add, subtracted for Subtract. Missing or non-finite scale values leave a
// year untouched.
func (s *Sheet) ScaleAdd(in, out Element, scale series.Series, codes []int, sign Sign) (*Sheet, error) {
	if in == out {
		return nil, fmt.Errorf("scale_add: input and output are both %s", in)
	}
	if _, err := s.element(in); err != nil {
		return nil, err
	}
	if _, err := s.element(out); err != nil {
		return nil, err
	}
	rows, err := s.rows(codes)
	if err != nil {
		return nil, err
	}
	res := s.Clone()
	vin, vout := res.data[in], res.data[out]
	n := len(s.years)
	for j, y := range s.years {
		f := scale.At(y)
		if !series.Finite(f) {
			continue
		}
		for _, i := range rows {
			k := i*n + j
			old := vin[k]
			vin[k] = old * f
			vout[k] = sign.apply(vout[k], series.SafeDelta(vin[k]-old))
		}
	}
	return res, nil
}

// Clamp sets negative values of element e to zero and forwards the removed
// shortfall to fallback. The shortfall is the (negative) amount that was
// removed, so a fallback with Add receives it as a decrease. It returns the
// total absolute shortfall.
func (s *Sheet) Clamp(e Element, fallback Flow) (*Sheet, float64, error) {
	if _, err := s.element(e); err != nil {
		return nil, 0, err
	}
	if _, err := s.element(fallback.Element); err != nil {
		return nil, 0, err
	}
	res := s.Clone()
	v, fb := res.data[e], res.data[fallback.Element]
	var moved float64
	for k, x := range v {
		if x < 0 {
			v[k] = 0
			fb[k] = fallback.Sign.apply(fb[k], x)
			moved -= x
		}
	}
	return res, moved, nil
}

// Negatives counts the cells of element e below zero.
func (s *Sheet) Negatives(e Element) int {
	n := 0
	for _, x := range s.data[e] {
		if x < 0 {
			n++
		}
	}
	return n
}

// Ratio divides s by base element by element using SafeRatio. The result
// has the labels of s; labels missing from base give 1.
func (s *Sheet) Ratio(base *Sheet) *Sheet {
	out := s.Clone()
	for e, v := range out.data {
		for i, it := range s.items {
			for j, y := range s.years {
				k := i*len(s.years) + j
				v[k] = series.SafeRatio(v[k], base.Get(e, it.Code, y))
			}
		}
	}
	return out
}

// MulRatio multiplies s by r element by element. Labels r does not hold are
// left unchanged.
func (s *Sheet) MulRatio(r *Sheet) *Sheet {
	out := s.Clone()
	for e, v := range out.data {
		for i, it := range s.items {
			for j, y := range s.years {
				f := r.Get(e, it.Code, y)
				if !series.Finite(f) {
					continue
				}
				v[i*len(s.years)+j] *= f
			}
		}
	}
	return out
}

// MulTable multiplies every element by a per item-year factor. Missing
// factors give NaN.
func (s *Sheet) MulTable(t *Table) *Sheet {
	out := s.Clone()
	for _, v := range out.data {
		for i, it := range s.items {
			for j, y := range s.years {
				v[i*len(s.years)+j] *= t.Get(it.Code, y)
			}
		}
	}
	return out
}

// MulVector multiplies every element by a per item factor. Missing factors
// give NaN.
func (s *Sheet) MulVector(f *Vector) *Sheet {
	out := s.Clone()
	n := len(s.years)
	for _, v := range out.data {
		for i, it := range s.items {
			x := f.Get(it.Code)
			for j := 0; j < n; j++ {
				v[i*n+j] *= x
			}
		}
	}
	return out
}

// MulSeries multiplies every value by the factor of its year.
func (s *Sheet) MulSeries(f series.Series) *Sheet {
	out := s.Clone()
	n := len(s.years)
	for _, v := range out.data {
		for j, y := range s.years {
			x := f.At(y)
			for i := range s.items {
				v[i*n+j] *= x
			}
		}
	}
	return out
}

// SSR is the self-sufficiency ratio per year: production over
// production + imports - exports, summed over items.
func (s *Sheet) SSR() (series.Series, error) {
	p, err := s.Total(Production, nil)
	if err != nil {
		return series.Series{}, err
	}
	im, err := s.Total(Imports, nil)
	if err != nil {
		return series.Series{}, err
	}
	ex, err := s.Total(Exports, nil)
	if err != nil {
		return series.Series{}, err
	}
	supply := p.Add(im).Sub(ex)
	out, _ := series.Ratio(p, supply)
	return out, nil
}
