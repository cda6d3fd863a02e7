package tape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "tapestrat/internal/errors"
)

// Format is a supported tape file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

const utf8BOM = "\ufeff"

// rawTable is an unconverted tape. numericCells marks sources whose cells
// hold raw numbers rather than display text.
type rawTable struct {
	header       []string
	rows         [][]string
	numericCells bool
}

// DetectFormat picks the reader from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".txt":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readFile(path string, format Format, opts Options) (*rawTable, error) {
	switch format {
	case FormatXLSX:
		return readWorkbook(path, opts.Sheet)
	case FormatTSV:
		delim := opts.Delimiter
		if delim == 0 {
			delim = '\t'
		}
		return readDelimitedFile(path, delim)
	default:
		delim := opts.Delimiter
		if delim == 0 {
			delim = ','
		}
		return readDelimitedFile(path, delim)
	}
}

func readDelimitedFile(path string, delim rune) (*rawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open tape", err).WithContext("path", path)
	}
	defer f.Close()

	t, err := readDelimited(f, delim)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr.WithContext("path", path)
		}
		return nil, err
	}
	return t, nil
}

func readDelimited(r io.Reader, delim rune) (*rawTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewParsingError("tape is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read tape header", err)
	}

	t := &rawTable{header: header}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read tape line %d", line), err)
		}
		if blankRow(record) {
			continue
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

func readWorkbook(path, sheet string) (*rawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParsingError("workbook has no sheets", nil).WithContext("path", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read sheet", err).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError("tape is empty", nil).WithContext("sheet", sheet)
	}

	t := &rawTable{header: rows[0], numericCells: true}
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
