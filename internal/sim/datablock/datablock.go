package datablock

import (
	"errors"
	"fmt"
	"sort"

	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/ledger"
	"agrifood.ai/internal/sim/series"
)

var (
	ErrMissing = errors.New("datablock: missing key")
	ErrType    = errors.New("datablock: wrong value type")
)

// Group is one level of the nested store.
type Group map[string]any

// DataBlock is the state threaded through a pipeline run. Values are one of
// *fbs.Sheet, *fbs.Table, *fbs.Vector, series.Series, *ledger.Ledger,
// *land.Map, *land.Grid, float64 or string.
type DataBlock struct {
	root     Group
	warnings []diag.Warning
}

func New() *DataBlock {
	d := &DataBlock{root: Group{}}
	for _, c := range Categories {
		d.root[c] = Group{}
	}
	return d
}

func supported(v any) (any, error) {
	switch x := v.(type) {
	case *fbs.Sheet, *fbs.Table, *fbs.Vector, series.Series, *ledger.Ledger, *land.Map, *land.Grid, float64, string:
		return v, nil
	case int:
		return float64(x), nil
	case Group:
		return x, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrType, v)
	}
}

// Write sets the value at p, creating intermediate groups as needed.
func (d *DataBlock) Write(p Path, v any) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", ErrMissing)
	}
	val, err := supported(v)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	g := d.root
	for i, k := range p[:len(p)-1] {
		next, ok := g[k]
		if !ok {
			ng := Group{}
			g[k] = ng
			g = ng
			continue
		}
		ng, ok := next.(Group)
		if !ok {
			return fmt.Errorf("write %s: %w: %s is a %T", p, ErrType, p[:i+1], next)
		}
		g = ng
	}
	g[p[len(p)-1]] = val
	return nil
}

func (d *DataBlock) Lookup(p Path) (any, bool) {
	var cur any = d.root
	for _, k := range p {
		g, ok := cur.(Group)
		if !ok {
			return nil, false
		}
		cur, ok = g[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (d *DataBlock) Has(p Path) bool {
	_, ok := d.Lookup(p)
	return ok
}

func get[T any](d *DataBlock, p Path) (T, error) {
	var zero T
	v, ok := d.Lookup(p)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissing, p)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrType, p, v, zero)
	}
	return t, nil
}

func (d *DataBlock) Sheet(p Path) (*fbs.Sheet, error)     { return get[*fbs.Sheet](d, p) }
func (d *DataBlock) Table(p Path) (*fbs.Table, error)     { return get[*fbs.Table](d, p) }
func (d *DataBlock) Vector(p Path) (*fbs.Vector, error)   { return get[*fbs.Vector](d, p) }
func (d *DataBlock) Series(p Path) (series.Series, error) { return get[series.Series](d, p) }
func (d *DataBlock) Ledger(p Path) (*ledger.Ledger, error) {
	return get[*ledger.Ledger](d, p)
}
func (d *DataBlock) LandMap(p Path) (*land.Map, error) { return get[*land.Map](d, p) }
func (d *DataBlock) Grid(p Path) (*land.Grid, error)   { return get[*land.Grid](d, p) }
func (d *DataBlock) Scalar(p Path) (float64, error)    { return get[float64](d, p) }

func (d *DataBlock) Warn(ws ...diag.Warning) { d.warnings = append(d.warnings, ws...) }

func (d *DataBlock) Warnings() []diag.Warning { return append([]diag.Warning(nil), d.warnings...) }

// Clone returns a deep copy; no value is shared with d.
func (d *DataBlock) Clone() *DataBlock {
	return &DataBlock{root: cloneGroup(d.root), warnings: d.Warnings()}
}

func cloneGroup(g Group) Group {
	out := make(Group, len(g))
	for k, v := range g {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Group:
		return cloneGroup(x)
	case *fbs.Sheet:
		return x.Clone()
	case *fbs.Table:
		return x.Clone()
	case *fbs.Vector:
		return x.Clone()
	case series.Series:
		return x.Clone()
	case *ledger.Ledger:
		return x.Clone()
	case *land.Map:
		return x.Clone()
	case *land.Grid:
		return x.Clone()
	default:
		return v
	}
}

// Walk visits every leaf in key order.
func (d *DataBlock) Walk(fn func(p Path, v any) error) error {
	return walk(nil, d.root, fn)
}

func walk(prefix Path, g Group, fn func(Path, any) error) error {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := append(append(Path(nil), prefix...), k)
		if sub, ok := g[k].(Group); ok {
			if err := walk(p, sub, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, g[k]); err != nil {
			return err
		}
	}
	return nil
}

// TagWarnings sets step on warnings recorded since index from.
func (d *DataBlock) TagWarnings(from int, step string) []diag.Warning {
	if from < 0 || from > len(d.warnings) {
		return nil
	}
	return append([]diag.Warning(nil), diag.Tag(d.warnings[from:], step)...)
}

func (d *DataBlock) NumWarnings() int { return len(d.warnings) }
