// Package tape reads loan tapes and converts them against a schema.
//
// A tape is a flat file with one row per loan: .csv, .tsv/.txt or .xlsx.
// Column names are matched to schema fields case-insensitively after an
// optional header map is applied. Every cell of a known column goes through
// the field's converter; unknown columns are kept as text. The result is a
// RecordSet, an immutable column-major snapshot sorted by loan id.
//
//	loader := tape.NewLoader(s, tape.Options{Metrics: tel.Metrics})
//	rs, err := loader.LoadFile(ctx, "data/tape.csv")
//	mortgages := rs.Partition("productdesc")["consumer_mortgage"]
//
// BuildProfile summarizes completeness and distribution per column.
package tape
