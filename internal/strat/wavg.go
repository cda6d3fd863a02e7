package strat

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "tapestrat/internal/errors"
)

// ZeroPolicy decides what a weighted average does with missing values:
// fill them with a constant, or drop them from numerator and denominator.
type ZeroPolicy struct {
	Exclude bool
	Fill    float64
}

// ExcludeMissing drops missing values.
var ExcludeMissing = ZeroPolicy{Exclude: true}

// FillWith replaces missing values with v.
func FillWith(v float64) ZeroPolicy { return ZeroPolicy{Fill: v} }

// ParseZeroPolicy reads "na", "nan", "none" or "null" as ExcludeMissing and
// any number as a fill value.
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "na", "nan", "none", "null":
		return ExcludeMissing, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return ZeroPolicy{}, apperrors.NewConfigError(fmt.Sprintf("invalid zero policy %q", s), err)
	}
	return FillWith(f), nil
}

func (z ZeroPolicy) String() string {
	if z.Exclude {
		return "na"
	}
	return strconv.FormatFloat(z.Fill, 'f', -1, 64)
}

// CellKind tells a computed statistic from a placeholder.
type CellKind int

const (
	CellValue CellKind = iota
	// CellNotApplicable marks a statistic with zero weight and zero values.
	CellNotApplicable
	// CellNoData marks a statistic with no usable input values.
	CellNoData
)

// Cell is one statistic of a stratification row.
type Cell struct {
	Kind  CellKind
	Value float64
}

// ValueCell wraps a computed number.
func ValueCell(v float64) Cell { return Cell{Kind: CellValue, Value: v} }

// NotApplicable is the marker for a zero-weight, zero-sum average.
func NotApplicable() Cell { return Cell{Kind: CellNotApplicable} }

// NoData is the marker for a statistic without usable values.
func NoData() Cell { return Cell{Kind: CellNoData} }

// Float returns the value and whether the cell holds one.
func (c Cell) Float() (float64, bool) {
	return c.Value, c.Kind == CellValue
}

// Text renders the cell for reports.
func (c Cell) Text() string {
	switch c.Kind {
	case CellNotApplicable:
		return "NA"
	case CellNoData:
		return ""
	default:
		return strconv.FormatFloat(c.Value, 'f', -1, 64)
	}
}

// MarshalJSON writes numbers as numbers, NotApplicable as "NA" and NoData
// as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNotApplicable:
		return []byte(`"NA"`), nil
	case CellNoData:
		return []byte("null"), nil
	default:
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(c.Value)
	}
}

// WeightedAverageOptions configure MakeWeightedAverage.
type WeightedAverageOptions struct {
	Zero ZeroPolicy
	// Round rounds the result to an integer, halves away from zero.
	Round bool
}

// WeightedAverage computes one average over values aligned with the weights
// it was made with. NaN marks a missing value.
type WeightedAverage func(values []float64) (Cell, error)

// MakeWeightedAverage returns a weighted average over the given weights.
// NaN weights count as zero. Missing values are filled first, so under a
// fill policy only an empty group fails; under ExcludeMissing a group whose
// values are all missing fails with ErrNoValidData too. When the included
// weights sum to zero it falls back to the plain mean, or NotApplicable when
// the values also sum to zero.
func MakeWeightedAverage(weights []float64, opts WeightedAverageOptions) WeightedAverage {
	w := append([]float64(nil), weights...)
	return func(values []float64) (Cell, error) {
		if len(values) != len(w) {
			return NoData(), apperrors.NewStratificationError(
				fmt.Sprintf("weighted average: %d values for %d weights", len(values), len(w)), nil)
		}

		var sumVW, sumW, sumV float64
		var n int
		for i, v := range values {
			if math.IsNaN(v) {
				if opts.Zero.Exclude {
					continue
				}
				v = opts.Zero.Fill
			}
			weight := w[i]
			if math.IsNaN(weight) {
				weight = 0
			}
			sumVW += v * weight
			sumW += weight
			sumV += v
			n++
		}
		if n == 0 {
			return NoData(), apperrors.ErrNoValidData
		}

		var avg float64
		switch {
		case sumW != 0:
			avg = sumVW / sumW
		case sumV != 0:
			avg = sumV / float64(n)
		default:
			return NotApplicable(), nil
		}
		if opts.Round {
			avg = RoundHalfAway(avg, 0)
		}
		return ValueCell(avg), nil
	}
}
