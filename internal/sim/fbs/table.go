package fbs

import (
	"fmt"
	"math"

	"agrifood.ai/internal/sim/series"
)

// Table is a single Item x Year array, such as emission factors.
type Table struct {
	axes
	v []float64
}

func NewTable(items []Item, years []int) (*Table, error) {
	a, err := newAxes(items, years)
	if err != nil {
		return nil, err
	}
	return &Table{axes: a, v: make([]float64, len(a.items)*len(a.years))}, nil
}

func (t *Table) Clone() *Table {
	return &Table{axes: t.axes.clone(), v: append([]float64(nil), t.v...)}
}

func (t *Table) Get(code, year int) float64 {
	k := t.offset(code, year)
	if k < 0 {
		return math.NaN()
	}
	return t.v[k]
}

func (t *Table) Set(code, year int, val float64) error {
	k := t.offset(code, year)
	if k < 0 {
		return fmt.Errorf("%w: %d@%d", ErrUnknownItem, code, year)
	}
	t.v[k] = val
	return nil
}

func (t *Table) Row(code int) series.Series {
	out := series.New(t.years)
	i, ok := t.itemIdx[code]
	for j := range out.Values {
		if !ok {
			out.Values[j] = math.NaN()
			continue
		}
		out.Values[j] = t.v[i*len(t.years)+j]
	}
	return out
}

// AddItem registers an item with fill in every year.
func (t *Table) AddItem(it Item, fill float64) error {
	if err := it.validate(); err != nil {
		return err
	}
	if t.HasItem(it.Code) {
		return fmt.Errorf("%w: %d", ErrDuplicateItem, it.Code)
	}
	t.itemIdx[it.Code] = len(t.items)
	t.items = append(t.items, it)
	for range t.years {
		t.v = append(t.v, fill)
	}
	return nil
}

// ExtendYears adds years filled from the closest earlier year.
func (t *Table) ExtendYears(years []int) *Table {
	if len(t.years) == 0 {
		return t.Clone()
	}
	merged, src := t.extendPlan(years)
	out := &Table{axes: t.axes.clone()}
	out.years = merged
	n, m := len(t.years), len(merged)
	out.v = make([]float64, len(t.items)*m)
	for i := range t.items {
		for k := range merged {
			out.v[i*m+k] = t.v[i*n+src[k]]
		}
	}
	return out
}

// ScaleItems multiplies the rows of codes by the factor of each year. Codes
// the table does not hold are skipped; they are returned for reporting.
func (t *Table) ScaleItems(codes []int, scale series.Series) (*Table, []int) {
	out := t.Clone()
	var skipped []int
	n := len(t.years)
	for _, c := range codes {
		i, ok := t.itemIdx[c]
		if !ok {
			skipped = append(skipped, c)
			continue
		}
		for j, y := range t.years {
			f := scale.At(y)
			if !series.Finite(f) {
				continue
			}
			out.v[i*n+j] *= f
		}
	}
	return out, skipped
}

// Vector is an Item-only array, such as nutrient content per gram.
type Vector struct {
	items   []Item
	v       []float64
	itemIdx map[int]int
}

func NewVector(items []Item) (*Vector, error) {
	a, err := newAxes(items, nil)
	if err != nil {
		return nil, err
	}
	return &Vector{items: a.items, itemIdx: a.itemIdx, v: make([]float64, len(a.items))}, nil
}

func (f *Vector) Clone() *Vector {
	idx := make(map[int]int, len(f.itemIdx))
	for k, v := range f.itemIdx {
		idx[k] = v
	}
	return &Vector{items: append([]Item(nil), f.items...), v: append([]float64(nil), f.v...), itemIdx: idx}
}

func (f *Vector) Items() []Item { return append([]Item(nil), f.items...) }

func (f *Vector) HasItem(code int) bool {
	_, ok := f.itemIdx[code]
	return ok
}

func (f *Vector) Get(code int) float64 {
	i, ok := f.itemIdx[code]
	if !ok {
		return math.NaN()
	}
	return f.v[i]
}

func (f *Vector) Set(code int, val float64) error {
	i, ok := f.itemIdx[code]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownItem, code)
	}
	f.v[i] = val
	return nil
}

func (f *Vector) AddItem(it Item, val float64) error {
	if err := it.validate(); err != nil {
		return err
	}
	if f.HasItem(it.Code) {
		return fmt.Errorf("%w: %d", ErrDuplicateItem, it.Code)
	}
	f.itemIdx[it.Code] = len(f.items)
	f.items = append(f.items, it)
	f.v = append(f.v, val)
	return nil
}
