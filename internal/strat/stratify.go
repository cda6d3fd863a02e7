package strat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/infrastructure"
	"tapestrat/internal/schema"
	"tapestrat/internal/tape"
)

// DefaultTopStates is how many state share columns the summary sets carry.
const DefaultTopStates = 2

// Options tune Stratify.
type Options struct {
	MaxBuckets     int
	RoundPrecision int
	// Zero is the missing-value policy of every weighted average.
	Zero ZeroPolicy
	// TopStates is the number of <STATE>_pct columns; zero means the default
	// and a negative value turns them off.
	TopStates int
	// Set overrides the summary set picked for the asset class.
	Set schema.SummarySet
	// Edges and Buckets replace computed buckets. Buckets wins when both are set.
	Edges   []float64
	Buckets *BucketSet
	// ProductField holds the product class of each record.
	ProductField string

	Logger  *slog.Logger
	Metrics *infrastructure.PipelineMetrics
}

func (o Options) withDefaults() Options {
	if o.MaxBuckets <= 0 {
		o.MaxBuckets = DefaultMaxBuckets
	}
	if o.RoundPrecision <= 0 {
		o.RoundPrecision = DefaultRoundPrecision
	}
	if o.TopStates == 0 {
		o.TopStates = DefaultTopStates
	}
	if o.ProductField == "" {
		o.ProductField = DefaultProductField
	}
	if o.Logger == nil {
		o.Logger = infrastructure.GetLogger()
	}
	return o
}

// Row is one bucket of a stratification table.
type Row struct {
	Label   string `json:"label"`
	Records int    `json:"records"`
	Cells   []Cell `json:"cells"`
}

// Table is the stratification of one asset class by one variable.
type Table struct {
	AssetClass string            `json:"asset_class"`
	Field      string            `json:"field"`
	Set        schema.SummarySet `json:"summary_set"`
	Buckets    BucketSet         `json:"buckets"`
	Columns    []string          `json:"columns"`
	Rows       []Row             `json:"rows"`
	Total      Row               `json:"total"`
	Notes      []string          `json:"notes,omitempty"`

	noData []string
}

// Header is the variable name followed by the statistic columns.
func (t *Table) Header() []string {
	return append([]string{t.Field}, t.Columns...)
}

// Records renders every row and the Total row as text.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	for _, r := range append(append([]Row(nil), t.Rows...), t.Total) {
		rec := make([]string, 0, len(r.Cells)+1)
		rec = append(rec, r.Label)
		for _, c := range r.Cells {
			rec = append(rec, c.Text())
		}
		out = append(out, rec)
	}
	return out
}

// Cell looks up one statistic by row label and column name.
func (t *Table) Cell(label, column string) (Cell, bool) {
	col := -1
	for i, c := range t.Columns {
		if c == column {
			col = i
			break
		}
	}
	if col < 0 {
		return Cell{}, false
	}
	if label == t.Total.Label {
		return t.Total.Cells[col], true
	}
	for _, r := range t.Rows {
		if r.Label == label {
			return r.Cells[col], true
		}
	}
	return Cell{}, false
}

// Stratify splits the records of assetClass into buckets of field and
// computes the summary set statistics per bucket and for the whole class.
// An empty assetClass stratifies the whole tape. Every required field the
// tape lacks is reported at once.
func Stratify(ctx context.Context, rs *tape.RecordSet, assetClass, field string, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	field = schema.NormalizeName(field)
	start := time.Now()

	ctx, span := infrastructure.StartSpan(ctx, "strat.stratify",
		attribute.String("strat.asset_class", assetClass),
		attribute.String("strat.field", field))
	defer span.End()

	logger := infrastructure.WithComponent(opts.Logger, "strat").With(
		slog.String("asset_class", assetClass),
		slog.String("field", field),
		slog.String("trace_id", infrastructure.GetTraceID(ctx)),
	)

	table, err := stratify(rs, assetClass, field, opts)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		opts.Metrics.RecordTableFailure(ctx, assetClass, err)
		logger.Warn("stratification failed", slog.String("error", err.Error()))
		return nil, err
	}

	for _, statistic := range table.noData {
		opts.Metrics.RecordNoValidData(ctx, statistic)
	}
	opts.Metrics.RecordTable(ctx, assetClass, string(table.Set), time.Since(start))
	logger.Debug("stratification built",
		slog.String("summary_set", string(table.Set)),
		slog.Int("buckets", len(table.Rows)),
		slog.Int("records", table.Total.Records),
	)
	return table, nil
}

func stratify(rs *tape.RecordSet, assetClass, field string, opts Options) (*Table, error) {
	if !rs.HasColumn(field) {
		return nil, &apperrors.UnsupportedVariableError{Variable: field, Reason: "not present on the tape"}
	}
	if assetClass != "" && !IsProductClass(assetClass) {
		return nil, apperrors.NewStratificationError(fmt.Sprintf("unknown asset class %q", assetClass), nil).
			WithContext("asset_class", assetClass)
	}

	set := opts.Set
	if set == "" {
		set = DefaultSetFor(assetClass)
	}
	def, ok := summarySets[set]
	if !ok {
		return nil, apperrors.NewStratificationError(fmt.Sprintf("summary set %q is not supported", set), nil).
			WithContext("summary_set", string(set))
	}

	if missing := missingRequired(rs, assetClass, def); len(missing) > 0 {
		return nil, &apperrors.MissingRequiredFieldError{AssetClass: assetClass, Fields: missing}
	}

	pool := rs
	if assetClass != "" && rs.HasColumn(opts.ProductField) {
		pool = rs.Filter(func(r tape.Record) bool {
			return normalizeClass(r.Get(opts.ProductField).Text()) == normalizeClass(assetClass)
		})
	}
	if pool.Len() == 0 {
		return nil, apperrors.NewStratificationError("no records to stratify", nil).
			WithContext("asset_class", assetClass).
			WithContext("field", field)
	}

	buckets, err := bucketsFor(pool, field, opts)
	if err != nil {
		return nil, err
	}

	data := newColumnData(pool, opts.Zero)
	columns := activeColumns(pool, def)
	if def.topStates && opts.TopStates > 0 {
		for _, st := range topStates(pool, opts.TopStates) {
			columns = append(columns, stateColumn(st))
		}
	}

	table := &Table{
		AssetClass: assetClass,
		Field:      field,
		Set:        set,
		Buckets:    buckets,
		Columns:    make([]string, len(columns)),
	}
	for i, c := range columns {
		table.Columns[i] = c.name
	}

	groups, missingRows := assign(pool, field, buckets)
	all := data.all()

	labels := buckets.Labels()
	for i, label := range labels {
		row, err := table.row(label, data.frame(groups[i]), all, columns)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	if over := groups[len(labels)]; len(over) > 0 {
		row, err := table.row(buckets.OverflowLabel(), data.frame(over), all, columns)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	if len(missingRows) > 0 {
		row, err := table.row(LabelMissing, data.frame(missingRows), all, columns)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}

	total, err := table.row(LabelTotal, all, all, columns)
	if err != nil {
		return nil, err
	}
	table.Total = total
	return table, nil
}

func (t *Table) row(label string, g, pool *frame, columns []column) (Row, error) {
	row := Row{Label: label, Records: g.n, Cells: make([]Cell, len(columns))}
	for i, c := range columns {
		cell, err := c.compute(g, pool)
		switch {
		case errors.Is(err, apperrors.ErrNoValidData):
			cell = NoData()
			if g.n > 0 {
				t.Notes = append(t.Notes, fmt.Sprintf("%s: no valid data for %s", label, c.name))
				t.noData = append(t.noData, c.name)
			}
		case err != nil:
			return Row{}, err
		}
		row.Cells[i] = cell
	}
	return row, nil
}

func missingRequired(rs *tape.RecordSet, assetClass string, def setDef) []string {
	seen := make(map[string]struct{})
	var fields []string
	add := func(f string) {
		f = schema.NormalizeName(f)
		if _, dup := seen[f]; !dup {
			seen[f] = struct{}{}
			fields = append(fields, f)
		}
	}
	for _, f := range def.required {
		add(f)
	}
	if flag, ok := productFlags[assetClass]; ok && rs.Schema() != nil {
		for _, f := range rs.Schema().RequiredFieldsFor(flag) {
			add(f)
		}
	}
	return rs.MissingColumns(fields)
}

func bucketsFor(pool *tape.RecordSet, field string, opts Options) (BucketSet, error) {
	switch {
	case opts.Buckets != nil:
		return *opts.Buckets, nil
	case len(opts.Edges) > 0:
		return NewEdgeBuckets(field, opts.Edges)
	default:
		return Bucketize(pool, field, BucketOptions{
			MaxBuckets:     opts.MaxBuckets,
			RoundPrecision: opts.RoundPrecision,
		})
	}
}

func activeColumns(rs *tape.RecordSet, def setDef) []column {
	var out []column
	for _, c := range def.columns {
		if len(rs.MissingColumns(c.optional)) > 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// assign groups record indexes by bucket. The last group is the overflow
// bucket; records with a missing value are returned separately.
func assign(rs *tape.RecordSet, field string, buckets BucketSet) ([][]int, []int) {
	col, _ := rs.Column(field)
	at := buckets.assigner()
	groups := make([][]int, buckets.Len()+1)
	var missing []int
	for i, v := range col {
		b := at(v)
		if b < 0 {
			missing = append(missing, i)
			continue
		}
		groups[b] = append(groups[b], i)
	}
	return groups, missing
}

// topStates ranks states by record count, ties by name.
func topStates(rs *tape.RecordSet, n int) []string {
	col, ok := rs.Column(fState)
	if !ok {
		return nil
	}
	counts := make(map[string]int)
	for _, v := range col {
		if v.IsMissing() || v.IsInvalid() {
			continue
		}
		counts[tape.StandardizeState(v.Text())]++
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		if counts[states[i]] != counts[states[j]] {
			return counts[states[i]] > counts[states[j]]
		}
		return states[i] < states[j]
	})
	if len(states) > n {
		states = states[:n]
	}
	return states
}

func stateColumn(state string) column {
	return column{name: state + "_pct", compute: func(g, _ *frame) (Cell, error) {
		matched, present := g.shareBy(fState, state, tape.StandardizeState)
		return pct(float64(matched), float64(present)), nil
	}}
}

// columnData caches numeric views of the pool's columns.
type columnData struct {
	rs     *tape.RecordSet
	zero   ZeroPolicy
	floats map[string][]float64
	values map[string][]convert.Value
}

func newColumnData(rs *tape.RecordSet, zero ZeroPolicy) *columnData {
	return &columnData{
		rs:     rs,
		zero:   zero,
		floats: make(map[string][]float64),
		values: make(map[string][]convert.Value),
	}
}

func (d *columnData) floatsOf(field string) []float64 {
	if f, ok := d.floats[field]; ok {
		return f
	}
	f, ok := d.rs.Floats(field)
	if !ok {
		f = make([]float64, d.rs.Len())
		for i := range f {
			f[i] = math.NaN()
		}
	}
	d.floats[field] = f
	return f
}

func (d *columnData) valuesOf(field string) []convert.Value {
	if v, ok := d.values[field]; ok {
		return v
	}
	v, ok := d.rs.Column(field)
	if !ok {
		v = make([]convert.Value, d.rs.Len())
	}
	d.values[field] = v
	return v
}

// frame is a group of pool records.
func (d *columnData) frame(rows []int) *frame {
	return &frame{data: d, rows: rows, n: len(rows)}
}

func (d *columnData) all() *frame {
	rows := make([]int, d.rs.Len())
	for i := range rows {
		rows[i] = i
	}
	return d.frame(rows)
}

type frame struct {
	data *columnData
	rows []int
	n    int
}

// count is the number of numeric values of field.
func (f *frame) count(field string) int {
	xs := f.data.floatsOf(field)
	n := 0
	for _, r := range f.rows {
		if !math.IsNaN(xs[r]) {
			n++
		}
	}
	return n
}

func (f *frame) sum(field string) float64 {
	xs := f.data.floatsOf(field)
	var s float64
	for _, r := range f.rows {
		if !math.IsNaN(xs[r]) {
			s += xs[r]
		}
	}
	return s
}

// present is the number of non-missing values of field of any kind.
func (f *frame) present(field string) int {
	vs := f.data.valuesOf(field)
	n := 0
	for _, r := range f.rows {
		if !vs[r].IsMissing() && !vs[r].IsInvalid() {
			n++
		}
	}
	return n
}

// share counts the values of field equal to want, ignoring case, and the
// non-missing values overall.
func (f *frame) share(field, want string) (matched, present int) {
	return f.shareBy(field, want, strings.ToLower)
}

// shareBy is share with values and want compared after norm.
func (f *frame) shareBy(field, want string, norm func(string) string) (matched, present int) {
	vs := f.data.valuesOf(field)
	want = norm(want)
	for _, r := range f.rows {
		v := vs[r]
		if v.IsMissing() || v.IsInvalid() {
			continue
		}
		present++
		if norm(v.Text()) == want {
			matched++
		}
	}
	return matched, present
}

func (f *frame) weighted(field, weight string, round bool) (Cell, error) {
	xs, ws := f.data.floatsOf(field), f.data.floatsOf(weight)
	values := make([]float64, len(f.rows))
	weights := make([]float64, len(f.rows))
	for i, r := range f.rows {
		values[i], weights[i] = xs[r], ws[r]
	}
	avg := MakeWeightedAverage(weights, WeightedAverageOptions{Zero: f.data.zero, Round: round})
	return avg(values)
}
