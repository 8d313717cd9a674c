package fbs

import (
	"fmt"
	"sort"
)

type axes struct {
	items   []Item
	years   []int
	itemIdx map[int]int
}

func newAxes(items []Item, years []int) (axes, error) {
	a := axes{
		items:   append([]Item(nil), items...),
		years:   append([]int(nil), years...),
		itemIdx: make(map[int]int, len(items)),
	}
	for i, it := range a.items {
		if err := it.validate(); err != nil {
			return axes{}, err
		}
		if _, dup := a.itemIdx[it.Code]; dup {
			return axes{}, fmt.Errorf("%w: %d", ErrDuplicateItem, it.Code)
		}
		a.itemIdx[it.Code] = i
	}
	for i := 1; i < len(a.years); i++ {
		if a.years[i] <= a.years[i-1] {
			return axes{}, ErrBadYears
		}
	}
	return a, nil
}

func (a axes) clone() axes {
	idx := make(map[int]int, len(a.itemIdx))
	for k, v := range a.itemIdx {
		idx[k] = v
	}
	return axes{
		items:   append([]Item(nil), a.items...),
		years:   append([]int(nil), a.years...),
		itemIdx: idx,
	}
}

func (a axes) Items() []Item { return append([]Item(nil), a.items...) }
func (a axes) Years() []int  { return append([]int(nil), a.years...) }
func (a axes) NumItems() int { return len(a.items) }

func (a axes) Codes() []int {
	out := make([]int, len(a.items))
	for i, it := range a.items {
		out[i] = it.Code
	}
	return out
}

func (a axes) Item(code int) (Item, bool) {
	i, ok := a.itemIdx[code]
	if !ok {
		return Item{}, false
	}
	return a.items[i], true
}

func (a axes) HasItem(code int) bool {
	_, ok := a.itemIdx[code]
	return ok
}

func (a axes) yearIndex(year int) int {
	j := sort.SearchInts(a.years, year)
	if j < len(a.years) && a.years[j] == year {
		return j
	}
	return -1
}

// offset returns the flat index of (code, year), or -1.
func (a axes) offset(code, year int) int {
	i, ok := a.itemIdx[code]
	if !ok {
		return -1
	}
	j := a.yearIndex(year)
	if j < 0 {
		return -1
	}
	return i*len(a.years) + j
}

// Select returns the codes of items matching pred, in sheet order.
func (a axes) Select(pred func(Item) bool) []int {
	var out []int
	for _, it := range a.items {
		if pred(it) {
			out = append(out, it.Code)
		}
	}
	return out
}

func (a axes) ByOrigin(origin string) []int {
	return a.Select(func(it Item) bool { return it.Origin == origin })
}

func (a axes) ByGroup(group string) []int {
	return a.Select(func(it Item) bool { return it.Group == group })
}

// Complement returns every code not in codes.
func (a axes) Complement(codes []int) []int {
	in := make(map[int]bool, len(codes))
	for _, c := range codes {
		in[c] = true
	}
	return a.Select(func(it Item) bool { return !in[it.Code] })
}

// rows resolves codes to row indices. A nil slice means every item.
func (a axes) rows(codes []int) ([]int, error) {
	if codes == nil {
		out := make([]int, len(a.items))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, 0, len(codes))
	seen := make(map[int]bool, len(codes))
	for _, c := range codes {
		i, ok := a.itemIdx[c]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownItem, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, i)
	}
	return out, nil
}

// extendPlan merges years into the axis and, for every resulting year,
// returns the index of the existing year its values are copied from.
func (a axes) extendPlan(years []int) ([]int, []int) {
	set := make(map[int]bool, len(a.years)+len(years))
	for _, y := range a.years {
		set[y] = true
	}
	for _, y := range years {
		set[y] = true
	}
	merged := make([]int, 0, len(set))
	for y := range set {
		merged = append(merged, y)
	}
	sort.Ints(merged)

	src := make([]int, len(merged))
	for k, y := range merged {
		j := sort.SearchInts(a.years, y)
		switch {
		case j < len(a.years) && a.years[j] == y:
			src[k] = j
		case j == 0:
			src[k] = 0
		default:
			src[k] = j - 1
		}
	}
	return merged, src
}
