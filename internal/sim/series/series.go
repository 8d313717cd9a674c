package series

import (
	"math"
	"sort"
)

// Series is a Year-indexed sequence of values. Years are strictly increasing.
type Series struct {
	Years  []int     `json:"years"`
	Values []float64 `json:"values"`
}

func New(years []int) Series {
	y := append([]int(nil), years...)
	return Series{Years: y, Values: make([]float64, len(y))}
}

func Const(years []int, v float64) Series {
	s := New(years)
	for i := range s.Values {
		s.Values[i] = v
	}
	return s
}

// Range returns the inclusive year range [from, to].
func Range(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}

func (s Series) Len() int { return len(s.Years) }

func (s Series) Clone() Series {
	return Series{
		Years:  append([]int(nil), s.Years...),
		Values: append([]float64(nil), s.Values...),
	}
}

func (s Series) index(year int) int {
	i := sort.SearchInts(s.Years, year)
	if i < len(s.Years) && s.Years[i] == year {
		return i
	}
	return -1
}

// At returns the value for year, or NaN when the label is absent.
func (s Series) At(year int) float64 {
	if i := s.index(year); i >= 0 {
		return s.Values[i]
	}
	return math.NaN()
}

func (s Series) Has(year int) bool { return s.index(year) >= 0 }

func (s Series) Set(year int, v float64) bool {
	if i := s.index(year); i >= 0 {
		s.Values[i] = v
		return true
	}
	return false
}

func (s Series) First() int {
	if len(s.Years) == 0 {
		return 0
	}
	return s.Years[0]
}

func (s Series) Last() int {
	if len(s.Years) == 0 {
		return 0
	}
	return s.Years[len(s.Years)-1]
}

// Map applies fn to every value and returns a new series.
func (s Series) Map(fn func(year int, v float64) float64) Series {
	out := s.Clone()
	for i, y := range out.Years {
		out.Values[i] = fn(y, out.Values[i])
	}
	return out
}

func (s Series) Scale(k float64) Series {
	return s.Map(func(_ int, v float64) float64 { return v * k })
}

// Add, Sub, Mul and Div align on the receiver's years; labels missing from o yield NaN.
func (s Series) Add(o Series) Series {
	return s.Map(func(y int, v float64) float64 { return v + o.At(y) })
}

func (s Series) Sub(o Series) Series {
	return s.Map(func(y int, v float64) float64 { return v - o.At(y) })
}

func (s Series) Mul(o Series) Series {
	return s.Map(func(y int, v float64) float64 { return v * o.At(y) })
}

func (s Series) Div(o Series) Series {
	return s.Map(func(y int, v float64) float64 { return v / o.At(y) })
}

// Sum adds every finite value.
func (s Series) Sum() float64 {
	var t float64
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			t += v
		}
	}
	return t
}

// SumBetween adds finite values for from <= year < to.
func (s Series) SumBetween(from, to int) float64 {
	var t float64
	for i, y := range s.Years {
		if y >= from && y < to && !math.IsNaN(s.Values[i]) {
			t += s.Values[i]
		}
	}
	return t
}

func (s Series) Min() float64 {
	m := math.Inf(1)
	for _, v := range s.Values {
		if v < m {
			m = v
		}
	}
	return m
}
