package schema

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/infrastructure"
)

// State is the lifecycle position of a Loader.
type State int

const (
	StateUnloaded State = iota
	StateValidating
	StateLoaded
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "UNLOADED"
	case StateValidating:
		return "VALIDATING"
	case StateLoaded:
		return "LOADED"
	case StateRejected:
		return "REJECTED"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

const utf8BOM = "\ufeff"

// Loader runs the schema gates and publishes the resulting Schema. A failed
// load leaves no Schema behind.
type Loader struct {
	mu      sync.RWMutex
	state   State
	current *Schema
	lastErr error
	policy  convert.Policy
	logger  *slog.Logger
	rows    *rowValidator
	metrics *infrastructure.PipelineMetrics
}

// NewLoader creates a new Loader. A nil logger uses slog.Default.
func NewLoader(policy convert.Policy, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		policy: policy,
		logger: logger.With(slog.String("component", "schema_loader")),
		rows:   newRowValidator(),
	}
}

// WithMetrics records every load attempt on m.
func (l *Loader) WithMetrics(m *infrastructure.PipelineMetrics) *Loader {
	l.metrics = m
	return l
}

// Load validates the schema file at path under the default policy.
func Load(path string) (*Schema, error) {
	return NewLoader(convert.DefaultPolicy(), nil).Load(path)
}

// State reports the lifecycle state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Current returns the loaded Schema, or nil unless the state is LOADED.
func (l *Loader) Current() *Schema {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Err returns the error of the last rejected load.
func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Load runs the four gates in order: file, header, rows, build. Any failure
// moves the loader to REJECTED and drops the previous Schema.
func (l *Loader) Load(path string) (*Schema, error) {
	l.mu.Lock()
	l.state = StateValidating
	l.current = nil
	l.lastErr = nil
	l.mu.Unlock()

	ctx, span := infrastructure.StartSpan(context.Background(), "schema.load",
		attribute.String("schema.path", path))
	defer span.End()

	s, err := l.load(path)
	l.metrics.RecordSchemaLoad(ctx, err == nil)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		infrastructure.RecordError(ctx, err)
		l.state = StateRejected
		l.lastErr = err
		l.logger.Error("schema rejected",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, err
	}
	l.state = StateLoaded
	l.current = s
	l.logger.Info("schema loaded",
		slog.String("path", path),
		slog.Int("fields", s.Len()),
		slog.Int("stratify_by", len(s.stratifyBy)))
	return s, nil
}

func (l *Loader) load(path string) (*Schema, error) {
	// Gate 1: existence and extension
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, &apperrors.ConfigFileNotFoundError{Path: path, Reason: "not a .csv file"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &apperrors.ConfigFileNotFoundError{Path: path, Reason: "file does not exist"}
	}
	if info.IsDir() {
		return nil, &apperrors.ConfigFileNotFoundError{Path: path, Reason: "path is a directory"}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open schema file", err).WithContext("path", path)
	}
	defer f.Close()

	s, err := l.parse(f)
	if err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// Parse runs the header, row and build gates over CSV text.
func (l *Loader) Parse(r io.Reader) (*Schema, error) {
	return l.parse(r)
}

func (l *Loader) parse(r io.Reader) (*Schema, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Gate 2: header
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &apperrors.ConfigHeaderMismatchError{Expected: RequiredColumns}
		}
		return nil, apperrors.NewParsingError("failed to read schema header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if !equalHeader(header, RequiredColumns) {
		return nil, &apperrors.ConfigHeaderMismatchError{
			Expected: append([]string(nil), RequiredColumns...),
			Actual:   header,
		}
	}

	// Gate 3: row validation
	var rows []schemaRow
	seen := make(map[string]int)
	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read schema row %d", rowNum), err)
		}
		if len(record) != len(RequiredColumns) {
			return nil, &apperrors.ConfigRowInvalidError{
				Row:      rowNum,
				Field:    "*",
				Expected: fmt.Sprintf("%d columns", len(RequiredColumns)),
				Actual:   fmt.Sprintf("%d columns", len(record)),
			}
		}
		row := newSchemaRow(record)
		if field, expected, actual, ok := l.rows.check(row); !ok {
			return nil, &apperrors.ConfigRowInvalidError{Row: rowNum, Field: field, Expected: expected, Actual: actual}
		}
		name := NormalizeName(row.FieldName)
		if first, dup := seen[name]; dup {
			return nil, &apperrors.ConfigRowInvalidError{
				Row:      rowNum,
				Field:    "FieldName",
				Expected: fmt.Sprintf("unique field name (first defined on row %d)", first),
				Actual:   row.FieldName,
			}
		}
		seen[name] = rowNum
		rows = append(rows, row)
	}

	// Gate 4: build
	b := NewBuilder(l.policy)
	for i, row := range rows {
		if err := b.Add(row.toFieldSpec()); err != nil {
			return nil, apperrors.NewSchemaError(fmt.Sprintf("schema row %d", i+1), err)
		}
	}
	return b.Build(), nil
}

func equalHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range expected {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}
