package land

import (
	"errors"
	"fmt"
	"math"
)

// Land use classes the model reads or creates.
const (
	Arable               = "Arable"
	ImprovedGrassland    = "Improved grassland"
	SemiNaturalGrassland = "Semi-natural grassland"
	Broadleaf            = "Broadleaf woodland"
	Coniferous           = "Coniferous woodland"
	Spared               = "Spared"
	BECCS                = "BECCS"
	Silvopasture         = "Silvopasture"
	Agroforestry         = "Agroforestry"
)

var (
	ErrUnknownClass = errors.New("unknown land class")
	ErrShape        = errors.New("land raster shape mismatch")
)

// Map holds, for every cell of a Width x Height raster, the percentage of
// the cell covered by each land class. Cells outside the classified domain
// are NaN in every class. With 1 km cells one percent is one hectare.
type Map struct {
	Width, Height int

	classes []string
	pct     map[string][]float64
}

func NewMap(width, height int, classes []string) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrShape, width, height)
	}
	m := &Map{Width: width, Height: height, pct: make(map[string][]float64, len(classes))}
	for _, c := range classes {
		if _, dup := m.pct[c]; dup {
			return nil, fmt.Errorf("duplicate land class %q", c)
		}
		m.classes = append(m.classes, c)
		m.pct[c] = make([]float64, width*height)
	}
	return m, nil
}

func (m *Map) Cells() int { return m.Width * m.Height }

func (m *Map) Classes() []string { return append([]string(nil), m.classes...) }

func (m *Map) HasClass(c string) bool {
	_, ok := m.pct[c]
	return ok
}

func (m *Map) Clone() *Map {
	out := &Map{Width: m.Width, Height: m.Height, classes: m.Classes(), pct: make(map[string][]float64, len(m.pct))}
	for c, v := range m.pct {
		out.pct[c] = append([]float64(nil), v...)
	}
	return out
}

func (m *Map) Get(class string, cell int) float64 {
	v, ok := m.pct[class]
	if !ok || cell < 0 || cell >= len(v) {
		return math.NaN()
	}
	return v[cell]
}

func (m *Map) Set(class string, cell int, val float64) error {
	v, ok := m.pct[class]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	if cell < 0 || cell >= len(v) {
		return fmt.Errorf("%w: cell %d", ErrShape, cell)
	}
	v[cell] = val
	return nil
}

// InDomain reports whether a cell is classified.
func (m *Map) InDomain(cell int) bool {
	for _, c := range m.classes {
		if !math.IsNaN(m.pct[c][cell]) {
			return true
		}
	}
	return false
}

// EnsureClass adds class with zero cover on classified cells and NaN
// elsewhere. It reports whether the class was added.
func (m *Map) EnsureClass(class string) bool {
	if m.HasClass(class) {
		return false
	}
	v := make([]float64, m.Cells())
	for i := range v {
		if !m.InDomain(i) {
			v[i] = math.NaN()
		}
	}
	m.classes = append(m.classes, class)
	m.pct[class] = v
	return true
}

// Area sums the cover of classes over every cell, skipping NaN.
func (m *Map) Area(classes ...string) float64 {
	var t float64
	for _, c := range classes {
		for _, x := range m.pct[c] {
			if !math.IsNaN(x) {
				t += x
			}
		}
	}
	return t
}

// CellTotal sums every class in one cell.
func (m *Map) CellTotal(cell int) float64 {
	var t float64
	for _, c := range m.classes {
		if x := m.pct[c][cell]; !math.IsNaN(x) {
			t += x
		}
	}
	return t
}

// Share returns, per cell, frac of the cover of class on cells accepted by
// mask. A nil mask accepts every cell.
func (m *Map) Share(class string, frac float64, mask func(cell int) bool) ([]float64, error) {
	v, ok := m.pct[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	out := make([]float64, len(v))
	for i, x := range v {
		if math.IsNaN(x) || (mask != nil && !mask(i)) {
			continue
		}
		out[i] = x * frac
	}
	return out, nil
}

// Move transfers amounts[cell] of cover from one class to another. Amounts
// are clamped to what the source holds, so the per-cell total is conserved.
// It returns the total moved.
func (m *Map) Move(from, to string, amounts []float64) (float64, error) {
	src, ok := m.pct[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, from)
	}
	dst, ok := m.pct[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, to)
	}
	if from == to {
		return 0, fmt.Errorf("move %q onto itself", from)
	}
	if len(amounts) != len(src) {
		return 0, fmt.Errorf("%w: %d amounts for %d cells", ErrShape, len(amounts), len(src))
	}
	var moved float64
	for i, a := range amounts {
		if math.IsNaN(a) || a <= 0 || math.IsNaN(src[i]) {
			continue
		}
		if a > src[i] {
			a = src[i]
		}
		src[i] -= a
		if math.IsNaN(dst[i]) {
			dst[i] = 0
		}
		dst[i] += a
		moved += a
	}
	return moved, nil
}

// Grid is a per-cell value raster, used for the dominant agricultural land
// classification grade. Unclassified cells are NaN.
type Grid struct {
	Width, Height int
	Values        []float64
}

func NewGrid(width, height int) *Grid {
	v := make([]float64, width*height)
	for i := range v {
		v[i] = math.NaN()
	}
	return &Grid{Width: width, Height: height, Values: v}
}

func (g *Grid) Clone() *Grid {
	return &Grid{Width: g.Width, Height: g.Height, Values: append([]float64(nil), g.Values...)}
}

// In reports whether the cell's grade is one of grades.
func (g *Grid) In(cell int, grades []float64) bool {
	if cell < 0 || cell >= len(g.Values) {
		return false
	}
	v := g.Values[cell]
	for _, gr := range grades {
		if v == gr {
			return true
		}
	}
	return false
}

// Mask returns a mask accepting cells graded in grades.
func (g *Grid) Mask(grades []float64) func(int) bool {
	return func(cell int) bool { return g.In(cell, grades) }
}
