package tape

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/infrastructure"
	"tapestrat/internal/schema"
)

const (
	// DefaultIDField names the loan identifier column.
	DefaultIDField = "loanid"
	// SectorField holds the asset type of each loan.
	SectorField = "sector"

	unmappedCategory = "unmapped"
)

// tapeMissingTokens are treated as missing in every column, on top of the
// converter tokens.
var tapeMissingTokens = []string{"nan", "NA", "N/A", `N\A`}

// Options tune how a tape is read.
type Options struct {
	// IDField is the primary key column. Empty means DefaultIDField.
	IDField string
	// Sheet selects an XLSX sheet. Empty means the first sheet.
	Sheet string
	// Delimiter overrides the field separator of .tsv and .txt files.
	Delimiter rune
	// HeaderMap renames tape columns before schema matching.
	HeaderMap map[string]string
	// Workers bounds concurrent column conversion. Zero means one per column.
	Workers int
	Logger  *slog.Logger
	Metrics *infrastructure.PipelineMetrics
}

// Loader converts raw tape tables into RecordSets using a schema's
// converter table.
type Loader struct {
	schema *schema.Schema
	opts   Options
	logger *slog.Logger
}

// NewLoader creates a new Loader. A nil schema keeps every column as text.
func NewLoader(s *schema.Schema, opts Options) *Loader {
	if opts.IDField == "" {
		opts.IDField = DefaultIDField
	}
	return &Loader{
		schema: s,
		opts:   opts,
		logger: infrastructure.WithComponent(opts.Logger, "tape_loader"),
	}
}

// LoadFile reads and converts the tape at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*RecordSet, error) {
	ctx, span := infrastructure.StartSpan(ctx, "tape.load", attribute.String("tape.path", path))
	defer span.End()

	format, err := DetectFormat(path)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	start := time.Now()
	raw, err := readFile(path, format, l.opts)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	rs, err := l.convertTable(ctx, raw)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		l.logger.ErrorContext(ctx, "tape rejected",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, err
	}

	l.opts.Metrics.RecordRows(ctx, string(format), rs.Len())
	l.logger.InfoContext(ctx, "tape loaded",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("records", rs.Len()),
		slog.Int("columns", len(rs.columns)),
		slog.Duration("elapsed", time.Since(start)))
	return rs, nil
}

// LoadTable converts an in-memory table whose first row is the header.
func (l *Loader) LoadTable(ctx context.Context, header []string, rows [][]string) (*RecordSet, error) {
	return l.convertTable(ctx, &rawTable{header: header, rows: rows})
}

func (l *Loader) convertTable(ctx context.Context, raw *rawTable) (*RecordSet, error) {
	columns := l.mapHeader(raw.header)

	idCol := -1
	for i, c := range columns {
		if c == schema.NormalizeName(l.opts.IDField) {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, &apperrors.MissingRequiredFieldError{Fields: []string{schema.NormalizeName(l.opts.IDField)}}
	}

	ids := make([]string, len(raw.rows))
	for r, row := range raw.rows {
		id := strings.TrimSpace(cell(row, idCol))
		if isTapeMissing(id) {
			id = ""
		}
		ids[r] = id
	}

	cols := make([][]convert.Value, len(columns))
	counts := make([]cellCounts, len(columns))

	g, _ := errgroup.WithContext(ctx)
	if l.opts.Workers > 0 {
		g.SetLimit(l.opts.Workers)
	}
	for c := range columns {
		g.Go(func() error {
			cols[c], counts[c] = l.convertColumn(columns[c], raw, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.recordCounts(ctx, columns, counts)
	return NewRecordSet(l.opts.IDField, l.schema, columns, ids, cols)
}

func (l *Loader) mapHeader(header []string) []string {
	mapped := make(map[string]string, len(l.opts.HeaderMap))
	for from, to := range l.opts.HeaderMap {
		mapped[schema.NormalizeName(from)] = schema.NormalizeName(to)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		name := schema.NormalizeName(strings.TrimPrefix(h, utf8BOM))
		if to, ok := mapped[name]; ok && to != "" {
			name = to
		}
		columns[i] = name
	}
	return columns
}

type cellCounts struct {
	category string
	valid    int64
	missing  int64
	invalid  int64
}

func (l *Loader) convertColumn(name string, raw *rawTable, c int) ([]convert.Value, cellCounts) {
	counts := cellCounts{category: unmappedCategory}

	var conv convert.Converter
	var numericDates bool
	if l.schema != nil {
		if spec, ok := l.schema.Field(name); ok {
			conv, _ = l.schema.ConverterFor(name)
			counts.category = string(spec.Category)
			numericDates = raw.numericCells && spec.Category == schema.CategoryDates
		}
	}

	out := make([]convert.Value, len(raw.rows))
	for r, row := range raw.rows {
		text := cell(row, c)
		var v convert.Value
		switch {
		case isTapeMissing(text):
			v = convert.Missing()
		case conv == nil:
			v = convert.String(strings.TrimSpace(text))
		case numericDates:
			// Workbooks store dates as serial numbers.
			if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
				v = conv(f)
			} else {
				v = conv(text)
			}
		default:
			v = conv(text)
		}
		if name == StateField {
			if st, ok := v.AsString(); ok {
				v = convert.String(StandardizeState(st))
			}
		}

		switch {
		case v.IsMissing():
			counts.missing++
		case v.IsInvalid():
			counts.invalid++
		default:
			counts.valid++
		}
		out[r] = v
	}
	return out, counts
}

func (l *Loader) recordCounts(ctx context.Context, columns []string, counts []cellCounts) {
	byCategory := make(map[string]cellCounts)
	for _, c := range counts {
		agg := byCategory[c.category]
		agg.valid += c.valid
		agg.missing += c.missing
		agg.invalid += c.invalid
		byCategory[c.category] = agg
	}
	for category, c := range byCategory {
		l.opts.Metrics.RecordCells(ctx, category, c.valid, c.missing, c.invalid)
	}

	for i, c := range counts {
		if c.invalid > 0 {
			l.logger.WarnContext(ctx, "column has malformed values",
				slog.String("column", columns[i]),
				slog.Int64("invalid", c.invalid))
		}
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isTapeMissing(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return true
	}
	for _, token := range tapeMissingTokens {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}
