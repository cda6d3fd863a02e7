// Package schema loads the declarative field schema that governs a loan tape.
//
// A schema file is a CSV with one row per tape field and a fixed 24-column
// header (see RequiredColumns). Loading runs four gates in order and stops at
// the first failure:
//
//  1. the path exists and ends in .csv (errors.ConfigFileNotFoundError)
//  2. the header matches RequiredColumns exactly (errors.ConfigHeaderMismatchError)
//  3. every row passes the meta-schema: enumerated columns hold a known
//     token and flag columns hold true or false (errors.ConfigRowInvalidError)
//  4. the rows are folded into an immutable Schema by a Builder
//
// The resulting Schema carries the six category partitions, the field type
// table, the converter table, per-asset-class field lists and the
// stratification tables. Converters are bound once at build time from a
// static category map; schedule fields named in convert.ArrayFieldNames use
// their dedicated parser.
//
// Example usage:
//
//	loader := schema.NewLoader(convert.DefaultPolicy(), logger)
//	s, err := loader.Load("config/loan_fields.csv")
//	if err != nil {
//	    var rowErr *errors.ConfigRowInvalidError
//	    if stderrors.As(err, &rowErr) {
//	        // rowErr.Row, rowErr.Field, rowErr.Expected, rowErr.Actual
//	    }
//	}
//	conv, _ := s.ConverterFor("bal_curr")
//	v := conv("$125,000.00")
package schema
