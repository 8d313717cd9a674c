package series

import "math"

// SafeRatio returns a/b, or 1 when the quotient is not finite.
// Every re-basing division in the model goes through this function.
func SafeRatio(a, b float64) float64 {
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 1
	}
	return r
}

// SafeDelta returns d, or 0 when d is not finite.
func SafeDelta(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

func Finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Ratio divides a by b year by year using SafeRatio. It reports whether any
// year had to be coerced.
func Ratio(a, b Series) (Series, bool) {
	coerced := false
	out := a.Map(func(y int, v float64) float64 {
		d := b.At(y)
		if !Finite(v / d) {
			coerced = true
		}
		return SafeRatio(v, d)
	})
	return out, coerced
}
