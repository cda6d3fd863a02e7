package strat

import (
	"math"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"tapestrat/internal/convert"
	"tapestrat/internal/schema"
	"tapestrat/internal/tape"
)

// buildTape assembles a record set with ids 1..n from per-column values.
func buildTape(t *testing.T, s *schema.Schema, cols map[string][]convert.Value) *tape.RecordSet {
	t.Helper()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	n := -1
	values := make([][]convert.Value, len(names))
	for i, name := range names {
		values[i] = cols[name]
		if n >= 0 {
			require.Len(t, cols[name], n, "column %s", name)
		}
		n = len(cols[name])
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}

	rs, err := tape.NewRecordSet("loanid", s, names, ids, values)
	require.NoError(t, err)
	return rs
}

// floats wraps numbers as values; NaN becomes Missing.
func floats(xs ...float64) []convert.Value {
	out := make([]convert.Value, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = convert.Missing()
			continue
		}
		out[i] = convert.Float(x)
	}
	return out
}

func ints(xs ...int64) []convert.Value {
	out := make([]convert.Value, len(xs))
	for i, x := range xs {
		out[i] = convert.Int(x)
	}
	return out
}

// strs wraps strings as values; "" becomes Missing.
func strs(xs ...string) []convert.Value {
	out := make([]convert.Value, len(xs))
	for i, x := range xs {
		if x == "" {
			out[i] = convert.Missing()
			continue
		}
		out[i] = convert.String(x)
	}
	return out
}

// flags marks true as a present bool and false as Missing.
func flags(xs ...bool) []convert.Value {
	out := make([]convert.Value, len(xs))
	for i, x := range xs {
		if x {
			out[i] = convert.Bool(true)
		}
	}
	return out
}

var nan = math.NaN()
