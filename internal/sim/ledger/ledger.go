package ledger

import (
	"errors"
	"fmt"

	"agrifood.ai/internal/sim/series"
)

var ErrDuplicateSource = errors.New("ledger source already recorded")

// Ledger holds one Year series per source. Sources are only ever appended;
// an existing source is never replaced.
type Ledger struct {
	years   []int
	sources []string
	rows    map[string][]float64
}

func New(years []int) *Ledger {
	return &Ledger{years: append([]int(nil), years...), rows: map[string][]float64{}}
}

func (l *Ledger) Years() []int      { return append([]int(nil), l.years...) }
func (l *Ledger) Sources() []string { return append([]string(nil), l.sources...) }
func (l *Ledger) Len() int          { return len(l.sources) }

func (l *Ledger) Has(source string) bool {
	_, ok := l.rows[source]
	return ok
}

// Append records a new source. Values are aligned on the ledger's years.
func (l *Ledger) Append(source string, s series.Series) error {
	if source == "" {
		return errors.New("ledger source must be named")
	}
	if l.Has(source) {
		return fmt.Errorf("%w: %q", ErrDuplicateSource, source)
	}
	row := make([]float64, len(l.years))
	for j, y := range l.years {
		row[j] = s.At(y)
	}
	l.sources = append(l.sources, source)
	l.rows[source] = row
	return nil
}

// Concat appends every source of o, in order. It fails before writing
// anything if a source is already present.
func (l *Ledger) Concat(o *Ledger) error {
	for _, src := range o.sources {
		if l.Has(src) {
			return fmt.Errorf("%w: %q", ErrDuplicateSource, src)
		}
	}
	for _, src := range o.sources {
		r, _ := o.Row(src)
		if err := l.Append(src, r); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Row(source string) (series.Series, bool) {
	v, ok := l.rows[source]
	if !ok {
		return series.Series{}, false
	}
	return series.Series{Years: l.Years(), Values: append([]float64(nil), v...)}, true
}

// Total sums the named sources, or every source when none are named.
// Unknown sources contribute nothing.
func (l *Ledger) Total(sources ...string) series.Series {
	if len(sources) == 0 {
		sources = l.sources
	}
	out := series.New(l.years)
	for _, src := range sources {
		v, ok := l.rows[src]
		if !ok {
			continue
		}
		for j, x := range v {
			if series.Finite(x) {
				out.Values[j] += x
			}
		}
	}
	return out
}

func (l *Ledger) Clone() *Ledger {
	out := New(l.years)
	out.sources = l.Sources()
	for k, v := range l.rows {
		out.rows[k] = append([]float64(nil), v...)
	}
	return out
}
