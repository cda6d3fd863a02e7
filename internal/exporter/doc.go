// Package exporter writes stratification results and tape profiles.
//
// CSVWriter writes single tables, per-table package files and profiles as
// CSV with an optional UTF-8 BOM for Excel. WorkbookWriter writes a whole
// package into one workbook with a run summary sheet and one sheet per
// table. WriteJSON serializes any result as indented JSON.
//
// Example usage:
//
//	csvWriter := exporter.NewCSVWriter(paths, logger)
//	err := csvWriter.WriteTable("consumer_mortgage_fico_orig.csv", table, true)
//
//	book := exporter.NewWorkbookWriter(logger)
//	err = book.WritePackage(paths.GetReportPath("strats.xlsx"), pkg)
package exporter
