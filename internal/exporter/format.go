package exporter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"tapestrat/internal/strat"
	"tapestrat/internal/tape"
)

// formatFloat prints the shortest representation that round-trips; NaN is
// empty.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_]+`)

// TableFileName names a table file: <class>_<field><ext>, or strat_<field>
// for a whole-tape table.
func TableFileName(table *strat.Table, ext string) string {
	class := table.AssetClass
	if class == "" {
		class = "strat"
	}
	name := unsafeName.ReplaceAllString(strings.ToLower(class+"_"+table.Field), "_")
	return name + ext
}

// ProfileHeaders lists the profile CSV columns.
func ProfileHeaders() []string {
	return []string{
		"field", "kind", "numeric", "count", "missing", "missing_pct", "invalid", "unique_num",
		"mean", "median", "min", "quart1", "quart2", "quart3", "max", "unique_values",
	}
}

// ProfileRecords renders a profile with one row per column. Distribution
// figures are blank for non-numeric columns; unique values are blank for
// numeric ones.
func ProfileRecords(p tape.Profile) [][]string {
	out := make([][]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		row := []string{
			c.Name, c.Kind, formatBool(c.Numeric), formatInt(c.Count), formatInt(c.Missing),
			fmt.Sprintf("%.4f", c.MissingPct), formatInt(c.Invalid), formatInt(c.UniqueNum),
		}
		if c.Numeric && c.Count > 0 {
			row = append(row,
				formatFloat(c.Mean), formatFloat(c.Median), formatFloat(c.Min), formatFloat(c.Quart1),
				formatFloat(c.Quart2), formatFloat(c.Quart3), formatFloat(c.Max), "")
		} else {
			row = append(row, "", "", "", "", "", "", "", strings.Join(c.UniqueValues, "|"))
		}
		out = append(out, row)
	}
	return out
}

// FailureRecords renders package failures for the run summary.
func FailureRecords(pkg *strat.Package) [][]string {
	out := make([][]string, 0, len(pkg.Failures))
	for _, f := range pkg.Failures {
		out = append(out, []string{f.AssetClass, f.Field, f.Error})
	}
	return out
}

// numeric reports whether cell text should be written as a number.
func numeric(c strat.Cell) (float64, bool) {
	v, ok := c.Float()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
