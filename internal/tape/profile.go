package tape

import (
	"math"
	"sort"

	"tapestrat/internal/convert"
)

// ColumnProfile describes one tape column.
type ColumnProfile struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Count      int     `json:"count"`
	Missing    int     `json:"missing"`
	MissingPct float64 `json:"missing_pct"`
	Invalid    int     `json:"invalid"`
	UniqueNum  int     `json:"unique_num"`

	// Numeric columns only.
	Numeric bool    `json:"numeric"`
	Mean    float64 `json:"mean,omitempty"`
	Median  float64 `json:"median,omitempty"`
	Min     float64 `json:"min,omitempty"`
	Quart1  float64 `json:"quart1,omitempty"`
	Quart2  float64 `json:"quart2,omitempty"`
	Quart3  float64 `json:"quart3,omitempty"`
	Max     float64 `json:"max,omitempty"`

	// Non-numeric columns only.
	UniqueValues []string `json:"unique_values,omitempty"`
}

// Profile summarizes every column of a tape.
type Profile struct {
	Records int             `json:"records"`
	Columns []ColumnProfile `json:"columns"`
}

const (
	// DefaultMaxUniqueValues caps the values listed per categorical column.
	DefaultMaxUniqueValues = 25
	// DefaultMaxUniqueCardinality is the distinct count above which a column
	// is treated as an identifier and lists no values.
	DefaultMaxUniqueCardinality = 500
)

// ProfileOptions bound the distinct values reported for categorical columns.
// Zero fields take the defaults.
type ProfileOptions struct {
	MaxUniqueValues      int
	MaxUniqueCardinality int
}

func (o ProfileOptions) withDefaults() ProfileOptions {
	if o.MaxUniqueValues <= 0 {
		o.MaxUniqueValues = DefaultMaxUniqueValues
	}
	if o.MaxUniqueCardinality <= 0 {
		o.MaxUniqueCardinality = DefaultMaxUniqueCardinality
	}
	return o
}

// BuildProfile computes per-column completeness and distribution figures
// with the default unique value limits.
func BuildProfile(rs *RecordSet) Profile {
	return BuildProfileWithOptions(rs, ProfileOptions{})
}

// BuildProfileWithOptions computes per-column completeness and distribution
// figures. MissingPct is a fraction of the record count. Quartiles use
// midpoint interpolation. UniqueValues lists the most frequent values first,
// ties by value, and is left empty for columns with more distinct values
// than MaxUniqueCardinality.
func BuildProfileWithOptions(rs *RecordSet, opts ProfileOptions) Profile {
	opts = opts.withDefaults()
	p := Profile{Records: rs.Len()}
	for c, name := range rs.columns {
		p.Columns = append(p.Columns, profileColumn(name, rs.cols[c], rs.ColumnKind(name), opts))
	}
	return p
}

func profileColumn(name string, col []convert.Value, kind convert.Kind, opts ProfileOptions) ColumnProfile {
	cp := ColumnProfile{Name: name, Kind: kind.String()}

	var nums []float64
	unique := make(map[string]int)
	for _, v := range col {
		switch {
		case v.IsMissing():
			cp.Missing++
			continue
		case v.IsInvalid():
			cp.Invalid++
			continue
		}
		cp.Count++
		unique[v.Text()]++
		if f, ok := v.AsFloat(); ok {
			nums = append(nums, f)
		}
	}

	if len(col) > 0 {
		cp.MissingPct = float64(cp.Missing) / float64(len(col))
	}
	cp.UniqueNum = len(unique)

	if kind == convert.KindInt || kind == convert.KindFloat {
		cp.Numeric = true
		if len(nums) == 0 {
			return cp
		}
		sort.Float64s(nums)
		cp.Mean = mean(nums)
		cp.Min = nums[0]
		cp.Max = nums[len(nums)-1]
		cp.Quart1 = Quantile(nums, 0.25)
		cp.Quart2 = Quantile(nums, 0.5)
		cp.Quart3 = Quantile(nums, 0.75)
		cp.Median = cp.Quart2
		return cp
	}

	if len(unique) > opts.MaxUniqueCardinality {
		return cp
	}
	cp.UniqueValues = make([]string, 0, len(unique))
	for v := range unique {
		cp.UniqueValues = append(cp.UniqueValues, v)
	}
	sort.Slice(cp.UniqueValues, func(i, j int) bool {
		a, b := cp.UniqueValues[i], cp.UniqueValues[j]
		if unique[a] != unique[b] {
			return unique[a] > unique[b]
		}
		return a < b
	})
	if len(cp.UniqueValues) > opts.MaxUniqueValues {
		cp.UniqueValues = cp.UniqueValues[:opts.MaxUniqueValues]
	}
	return cp
}

// Quantile returns the q-quantile of sorted values using midpoint
// interpolation between the two nearest ranks. Empty input yields NaN.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(pos)), int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return (sorted[lo] + sorted[hi]) / 2
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
