package adoption

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"agrifood.ai/internal/sim/series"
)

// Epsilon is the distance from the end points the logistic curve keeps at the
// window edges, as a fraction of |cEnd-cInit|.
const Epsilon = 0.01

var (
	ErrUnknownShape = errors.New("unknown adoption shape")
	ErrBadWindow    = errors.New("invalid adoption window")
)

type Shape int

const (
	// None applies the end value immediately.
	None Shape = iota
	Linear
	Logistic
)

func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "linear":
		return Linear, nil
	case "logistic":
		return Logistic, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownShape, s)
	}
}

func (s Shape) String() string {
	switch s {
	case None:
		return "none"
	case Linear:
		return "linear"
	case Logistic:
		return "logistic"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Curve returns a series over [y0, y3] that holds cInit before y1, cEnd after
// y2 and moves between them inside the window following shape. A window
// ending past y3 is clipped to y3.
func Curve(y0, y1, y2, y3 int, cInit, cEnd float64, shape Shape) (series.Series, error) {
	if shape != Linear && shape != Logistic {
		return series.Series{}, fmt.Errorf("%w: %s", ErrUnknownShape, shape)
	}
	if y3 < y0 {
		return series.Series{}, fmt.Errorf("%w: y3 %d before y0 %d", ErrBadWindow, y3, y0)
	}
	if y2 < y1 {
		return series.Series{}, fmt.Errorf("%w: y2 %d before y1 %d", ErrBadWindow, y2, y1)
	}
	if y2 > y3 {
		y2 = y3
	}
	if y1 > y2 {
		y1 = y2
	}

	out := series.New(series.Range(y0, y3))
	span := float64(y2 - y1)
	mid := float64(y1+y2) / 2
	k := 0.0
	if span > 0 {
		k = 2 * math.Log((1-Epsilon)/Epsilon) / span
	}
	for i, y := range out.Years {
		switch {
		case y < y1:
			out.Values[i] = cInit
		case y > y2 || span == 0:
			out.Values[i] = cEnd
		case shape == Linear:
			out.Values[i] = cInit + (cEnd-cInit)*float64(y-y1)/span
		default:
			f := 1 / (1 + math.Exp(-k*(float64(y)-mid)))
			out.Values[i] = cInit + (cEnd-cInit)*f
		}
	}
	return out, nil
}

// Ramp is the curve most steps use: over the given years, starting at start
// and lasting timescale years.
func Ramp(years []int, start, timescale int, cInit, cEnd float64, shape Shape) (series.Series, error) {
	if len(years) == 0 {
		return series.Series{}, fmt.Errorf("%w: no years", ErrBadWindow)
	}
	if timescale < 0 {
		return series.Series{}, fmt.Errorf("%w: negative timescale %d", ErrBadWindow, timescale)
	}
	first, last := years[0], years[len(years)-1]
	end := start + timescale
	if end > last {
		end = last
	}
	if start > end {
		start = end
	}
	return Curve(first, start, end, last, cInit, cEnd, shape)
}
