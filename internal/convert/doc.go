// Package convert turns raw tape cells into typed values.
//
// Loan tapes arrive with every kind of formatting accident: currency symbols,
// thousands separators, percent and basis-point suffixes, Excel serial dates,
// YYYYMMDD integers and a long list of spellings for "no value". The
// converters in this package absorb all of that and never fail: a cell that
// cannot be read becomes the Missing value instead of an error.
//
// # Values
//
// Every converter returns a Value, a small tagged variant that holds exactly
// one of bool, int64, float64, string, date, []float64 or []time.Time. Two
// extra kinds exist: Missing, for absent or unreadable cells, and Invalid,
// returned only by the array parsers when a schedule expression is present
// but malformed. Callers must check Invalid explicitly.
//
// # Scalar converters
//
//	convert.ConvertBools("Yes")                 // Bool(true)
//	convert.ConvertInts("$1,234.50", convert.Width64) // Int(1235)
//	convert.ConvertFloats("5.25%", convert.Width64)   // Float(5.25)
//	convert.ConvertDates(43831, "")             // Date(2020-01-01)
//	convert.ConvertStrs(true)                   // String("True")
//
// Percent and bps suffixes are read literally by default. A Policy with a
// PercentScale or BpsScale other than one rescales them.
//
// # Schedules
//
// Payment and draw schedules use a small expression language:
//
//	convert.ReadRampToArray("100 for 3, 100 ramp 200 for 3")
//	// FloatArray([100 100 100 100 150 200])
//
// See ReadRampToArray and ReadDatesToArray for the grammar.
package convert
