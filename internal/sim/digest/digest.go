package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/ledger"
	"agrifood.ai/internal/sim/series"
)

// DataBlock hashes every value of d in key order. Two runs with the same
// baseline and parameters give the same digest.
func DataBlock(d *datablock.DataBlock) (string, error) {
	h := sha256.New()
	var tmp [8]byte
	err := d.Walk(func(p datablock.Path, v any) error {
		writeString(h, &tmp, p.String())
		return writeValue(h, &tmp, v)
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeU64(h io.Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeI64(h io.Writer, tmp *[8]byte, v int64) { writeU64(h, tmp, uint64(v)) }

func writeF64(h io.Writer, tmp *[8]byte, v float64) {
	if math.IsNaN(v) {
		// Canonical NaN; payload bits vary between platforms.
		v = math.NaN()
	}
	writeU64(h, tmp, math.Float64bits(v))
}

func writeString(h io.Writer, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	io.WriteString(h, s)
}

func writeItems(h io.Writer, tmp *[8]byte, items []fbs.Item) {
	writeU64(h, tmp, uint64(len(items)))
	for _, it := range items {
		writeI64(h, tmp, int64(it.Code))
		writeString(h, tmp, it.Name)
		writeString(h, tmp, it.Group)
		writeString(h, tmp, it.Origin)
	}
}

func writeYears(h io.Writer, tmp *[8]byte, years []int) {
	writeU64(h, tmp, uint64(len(years)))
	for _, y := range years {
		writeI64(h, tmp, int64(y))
	}
}

func writeValue(h io.Writer, tmp *[8]byte, v any) error {
	switch x := v.(type) {
	case *fbs.Sheet:
		io.WriteString(h, "sheet")
		writeItems(h, tmp, x.Items())
		writeYears(h, tmp, x.Years())
		for _, e := range x.Elements() {
			writeString(h, tmp, string(e))
			for _, c := range x.Codes() {
				for _, y := range x.Years() {
					writeF64(h, tmp, x.Get(e, c, y))
				}
			}
		}
	case *fbs.Table:
		io.WriteString(h, "table")
		writeItems(h, tmp, x.Items())
		writeYears(h, tmp, x.Years())
		for _, c := range x.Codes() {
			for _, y := range x.Years() {
				writeF64(h, tmp, x.Get(c, y))
			}
		}
	case *fbs.Vector:
		io.WriteString(h, "vector")
		items := x.Items()
		writeItems(h, tmp, items)
		for _, it := range items {
			writeF64(h, tmp, x.Get(it.Code))
		}
	case series.Series:
		io.WriteString(h, "series")
		writeYears(h, tmp, x.Years)
		for _, f := range x.Values {
			writeF64(h, tmp, f)
		}
	case *ledger.Ledger:
		io.WriteString(h, "ledger")
		writeYears(h, tmp, x.Years())
		for _, src := range x.Sources() {
			writeString(h, tmp, src)
			r, _ := x.Row(src)
			for _, f := range r.Values {
				writeF64(h, tmp, f)
			}
		}
	case *land.Map:
		io.WriteString(h, "land")
		writeI64(h, tmp, int64(x.Width))
		writeI64(h, tmp, int64(x.Height))
		for _, c := range x.Classes() {
			writeString(h, tmp, c)
			for i := 0; i < x.Cells(); i++ {
				writeF64(h, tmp, x.Get(c, i))
			}
		}
	case *land.Grid:
		io.WriteString(h, "grid")
		writeI64(h, tmp, int64(x.Width))
		writeI64(h, tmp, int64(x.Height))
		for _, f := range x.Values {
			writeF64(h, tmp, f)
		}
	case float64:
		io.WriteString(h, "f64")
		writeF64(h, tmp, x)
	case string:
		io.WriteString(h, "str")
		writeString(h, tmp, x)
	default:
		return fmt.Errorf("digest: unsupported value %T", v)
	}
	return nil
}
