package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tapestrat/internal/strat"
)

const (
	summarySheet    = "Summary"
	maxSheetNameLen = 31
)

// WorkbookWriter writes a stratification package as one Excel workbook.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a new workbook writer
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// WritePackage saves pkg to path. The first sheet lists the run and any
// failed tables; every table follows on its own sheet. Statistics are
// written as numbers, NotApplicable cells as NA and NoData cells blank.
func (w *WorkbookWriter) WritePackage(path string, pkg *strat.Package) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, pkg, bold); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, table := range pkg.Tables {
		name := sheetName(table, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if err := writeTableSheet(f, name, table, bold); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Info("workbook written",
		slog.String("path", path),
		slog.Int("tables", len(pkg.Tables)),
		slog.Int("failures", len(pkg.Failures)))
	return nil
}

func writeSummarySheet(f *excelize.File, pkg *strat.Package, style int) error {
	rows := [][]interface{}{
		{"run_id", pkg.RunID},
		{"created_at", pkg.CreatedAt.Format(time.RFC3339)},
		{"records", pkg.Records},
		{"tables", len(pkg.Tables)},
		{"failures", len(pkg.Failures)},
	}
	if len(pkg.Failures) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"asset_class", "field", "error"})
		for _, rec := range FailureRecords(pkg) {
			rows = append(rows, []interface{}{rec[0], rec[1], rec[2]})
		}
	}
	if err := setRows(f, summarySheet, rows); err != nil {
		return err
	}
	if len(pkg.Failures) > 0 {
		return f.SetRowStyle(summarySheet, 7, 7, style)
	}
	return nil
}

func writeTableSheet(f *excelize.File, sheet string, table *strat.Table, style int) error {
	header := table.Header()
	rows := make([][]interface{}, 0, len(table.Rows)+2)

	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	rows = append(rows, hdr)

	for _, r := range append(append([]strat.Row(nil), table.Rows...), table.Total) {
		row := make([]interface{}, 0, len(r.Cells)+1)
		row = append(row, r.Label)
		for _, c := range r.Cells {
			if v, ok := numeric(c); ok {
				row = append(row, v)
				continue
			}
			row = append(row, c.Text())
		}
		rows = append(rows, row)
	}

	if err := setRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}
	return f.SetRowStyle(sheet, len(rows), len(rows), style)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_", "'", "",
)

// sheetName builds a unique, Excel-safe sheet name of at most 31 characters.
func sheetName(table *strat.Table, used map[string]bool) string {
	base := strings.TrimSuffix(TableFileName(table, ""), "_")
	base = sheetNameReplacer.Replace(base)
	if len(base) > maxSheetNameLen {
		base = base[:maxSheetNameLen]
	}

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := "~" + strconv.Itoa(n)
		cut := base
		if len(cut)+len(suffix) > maxSheetNameLen {
			cut = cut[:maxSheetNameLen-len(suffix)]
		}
		name = cut + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
