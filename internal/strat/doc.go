// Package strat buckets loan tape variables and summarizes each bucket.
//
// Bucketize picks buckets for a variable: preset edges for well-known
// variables (FICO, LTV, DTI, term), evenly spaced "nice" edges for other
// numeric fields, one bucket per value for categorical fields and one per
// origination period for dates.
//
// Stratify groups the records of one product class by those buckets and
// computes a summary set per bucket: counts, balances and their shares,
// balance-weighted averages and flag percentages, followed by a Total row.
// BuildPackage runs Stratify for every product class and stratify-by field
// on a bounded worker pool.
package strat
