package strat

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// RoundMethod selects the direction of RoundToNearest.
type RoundMethod int

const (
	RoundDown RoundMethod = iota
	RoundUp
	RoundMid
)

func (m RoundMethod) String() string {
	switch m {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	case RoundMid:
		return "mid"
	default:
		return fmt.Sprintf("RoundMethod(%d)", int(m))
	}
}

// RoundToNearest snaps x to a multiple of base: the multiple at or below x,
// at or above x, or the closest one (halves away from zero). Arithmetic is
// decimal so that 0.0525 snapped to 0.0025 stays 0.0525.
func RoundToNearest(x, base float64, method RoundMethod) float64 {
	if base == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return roundDecimal(decimal.NewFromFloat(x), decimal.NewFromFloat(base), method).InexactFloat64()
}

func roundDecimal(x, base decimal.Decimal, method RoundMethod) decimal.Decimal {
	q := x.DivRound(base, 16)
	switch method {
	case RoundUp:
		q = q.Ceil()
	case RoundMid:
		q = q.Round(0)
	default:
		q = q.Floor()
	}
	return q.Mul(base)
}

// RoundHalfAway rounds x to places decimals, halves away from zero.
func RoundHalfAway(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// smallMagnitudeFactor rescales values below one before choosing a rounding
// unit, so rates stored as fractions get a useful number of digits.
const smallMagnitudeFactor = 10000

// LowestBucket rounds v down to a "nice" bound with precision significant
// digits. Values below one are treated as fractions and get one extra digit.
func LowestBucket(v float64, precision int) float64 {
	return boundBucket(v, precision, RoundDown)
}

// HighestBucket rounds v up to a "nice" bound with precision significant
// digits. Values below one are treated as fractions and get one extra digit.
func HighestBucket(v float64, precision int) float64 {
	return boundBucket(v, precision, RoundUp)
}

func boundBucket(v float64, precision int, method RoundMethod) float64 {
	x, base, factor := bucketUnit(v, precision)
	if base.IsZero() {
		return v
	}
	return roundDecimal(x, base, method).DivRound(factor, 16).InexactFloat64()
}

// bucketUnit returns the scaled value, its rounding unit 5×10^(digits-(p-1))
// and the scale factor. Zero has no unit.
func bucketUnit(v float64, precision int) (scaled, base, factor decimal.Decimal) {
	factor = decimal.NewFromInt(1)
	if v < 1 {
		factor = decimal.NewFromInt(smallMagnitudeFactor)
		precision++
	}
	scaled = decimal.NewFromFloat(v).Mul(factor)
	mag := math.Abs(scaled.InexactFloat64())
	if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
		return scaled, decimal.Zero, factor
	}
	digits := int(math.Log10(mag))
	base = decimal.New(5, int32(digits-(precision-1)))
	return scaled, base, factor
}
