package tape

import (
	"math"
	"sort"
	"strconv"
	"time"

	"tapestrat/internal/convert"
	"tapestrat/internal/schema"
)

// RecordSet is an immutable, column-major snapshot of a converted tape.
// Rows are ordered by loan id. Every accessor returns copies, so a RecordSet
// can be read from many goroutines.
type RecordSet struct {
	idField string
	columns []string
	index   map[string]int
	ids     []string
	cols    [][]convert.Value
	schema  *schema.Schema
}

// Record is one loan row keyed by normalized column name.
type Record struct {
	ID     string
	Values map[string]convert.Value
}

// Get returns the value of field, or Missing when the record lacks it.
func (r Record) Get(field string) convert.Value {
	return r.Values[schema.NormalizeName(field)]
}

// NewRecordSet assembles a RecordSet from converted columns. Columns are
// keyed by normalized name and must all have the same length as ids.
// Records are sorted by id; duplicate or blank ids are rejected.
func NewRecordSet(idField string, s *schema.Schema, columns []string, ids []string, cols [][]convert.Value) (*RecordSet, error) {
	idField = schema.NormalizeName(idField)
	if len(columns) != len(cols) {
		return nil, errColumnCount(len(columns), len(cols))
	}

	rs := &RecordSet{
		idField: idField,
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
		schema:  s,
	}
	for i, c := range columns {
		name := schema.NormalizeName(c)
		if _, dup := rs.index[name]; dup {
			return nil, errDuplicateColumn(name)
		}
		rs.columns[i] = name
		rs.index[name] = i
		if len(cols[i]) != len(ids) {
			return nil, errColumnLength(name, len(cols[i]), len(ids))
		}
	}

	seen := make(map[string]int, len(ids))
	for row, id := range ids {
		if id == "" {
			return nil, errBlankID(idField, row+1)
		}
		if prev, dup := seen[id]; dup {
			return nil, errDuplicateID(idField, id, prev+1, row+1)
		}
		seen[id] = row
	}

	order := sortedOrder(ids)
	rs.ids = make([]string, len(ids))
	for i, src := range order {
		rs.ids[i] = ids[src]
	}
	rs.cols = make([][]convert.Value, len(cols))
	for c := range cols {
		col := make([]convert.Value, len(order))
		for i, src := range order {
			col[i] = cols[c][src]
		}
		rs.cols[c] = col
	}
	return rs, nil
}

// sortedOrder sorts ids numerically when every id is an integer and
// lexically otherwise.
func sortedOrder(ids []string) []int {
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}

	numeric := make([]int64, len(ids))
	allNumeric := len(ids) > 0
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			allNumeric = false
			break
		}
		numeric[i] = n
	}

	sort.SliceStable(order, func(a, b int) bool {
		if allNumeric {
			return numeric[order[a]] < numeric[order[b]]
		}
		return ids[order[a]] < ids[order[b]]
	})
	return order
}

// IDField is the normalized name of the identifier column.
func (rs *RecordSet) IDField() string { return rs.idField }

// Schema is the schema the tape was converted with. It may be nil.
func (rs *RecordSet) Schema() *schema.Schema { return rs.schema }

// Len is the number of records.
func (rs *RecordSet) Len() int { return len(rs.ids) }

// Columns lists the normalized column names in tape order.
func (rs *RecordSet) Columns() []string {
	return append([]string(nil), rs.columns...)
}

// HasColumn reports whether the tape carries field.
func (rs *RecordSet) HasColumn(field string) bool {
	_, ok := rs.index[schema.NormalizeName(field)]
	return ok
}

// MissingColumns returns the fields absent from the tape, sorted.
func (rs *RecordSet) MissingColumns(fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !rs.HasColumn(f) {
			missing = append(missing, schema.NormalizeName(f))
		}
	}
	sort.Strings(missing)
	return missing
}

// IDs returns the loan ids in record order.
func (rs *RecordSet) IDs() []string {
	return append([]string(nil), rs.ids...)
}

// ID returns the id of record i.
func (rs *RecordSet) ID(i int) string { return rs.ids[i] }

// Get returns one cell. Unknown fields read as Missing.
func (rs *RecordSet) Get(i int, field string) convert.Value {
	c, ok := rs.index[schema.NormalizeName(field)]
	if !ok {
		return convert.Missing()
	}
	return rs.cols[c][i]
}

// Record materializes row i.
func (rs *RecordSet) Record(i int) Record {
	values := make(map[string]convert.Value, len(rs.columns))
	for c, name := range rs.columns {
		values[name] = rs.cols[c][i]
	}
	return Record{ID: rs.ids[i], Values: values}
}

// Column returns a copy of one column, or false if the tape lacks it.
func (rs *RecordSet) Column(field string) ([]convert.Value, bool) {
	c, ok := rs.index[schema.NormalizeName(field)]
	if !ok {
		return nil, false
	}
	return append([]convert.Value(nil), rs.cols[c]...), true
}

// Floats returns a numeric view of a column with NaN for every cell that is
// not an int or a float.
func (rs *RecordSet) Floats(field string) ([]float64, bool) {
	c, ok := rs.index[schema.NormalizeName(field)]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(rs.ids))
	for i, v := range rs.cols[c] {
		f, ok := v.AsFloat()
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out, true
}

// Dates returns a date view of a column; ok[i] is false for non-date cells.
func (rs *RecordSet) Dates(field string) ([]time.Time, []bool, bool) {
	c, found := rs.index[schema.NormalizeName(field)]
	if !found {
		return nil, nil, false
	}
	out := make([]time.Time, len(rs.ids))
	ok := make([]bool, len(rs.ids))
	for i, v := range rs.cols[c] {
		out[i], ok[i] = v.AsDate()
	}
	return out, ok, true
}

// ColumnKind classifies a column by its non-missing cells: the common kind
// when they all agree, KindFloat for a mix of ints and floats, KindString
// for any other mix, and KindMissing for an all-missing column.
func (rs *RecordSet) ColumnKind(field string) convert.Kind {
	c, ok := rs.index[schema.NormalizeName(field)]
	if !ok {
		return convert.KindMissing
	}
	kind := convert.KindMissing
	for _, v := range rs.cols[c] {
		k := v.Kind()
		switch {
		case k == convert.KindMissing || k == convert.KindInvalid:
			continue
		case kind == convert.KindMissing:
			kind = k
		case kind == k:
		case (kind == convert.KindInt || kind == convert.KindFloat) && (k == convert.KindInt || k == convert.KindFloat):
			kind = convert.KindFloat
		default:
			return convert.KindString
		}
	}
	return kind
}

// Filter returns the records for which keep returns true.
func (rs *RecordSet) Filter(keep func(Record) bool) *RecordSet {
	var rows []int
	for i := range rs.ids {
		if keep(rs.Record(i)) {
			rows = append(rows, i)
		}
	}
	return rs.subset(rows)
}

// Partition splits the records by the text of field. Records whose value is
// missing are left out.
func (rs *RecordSet) Partition(field string) map[string]*RecordSet {
	c, ok := rs.index[schema.NormalizeName(field)]
	if !ok {
		return nil
	}
	groups := make(map[string][]int)
	for i, v := range rs.cols[c] {
		if v.IsMissing() || v.IsInvalid() {
			continue
		}
		key := v.Text()
		groups[key] = append(groups[key], i)
	}
	out := make(map[string]*RecordSet, len(groups))
	for key, rows := range groups {
		out[key] = rs.subset(rows)
	}
	return out
}

// Distinct returns the sorted distinct texts of field's non-missing values.
func (rs *RecordSet) Distinct(field string) []string {
	c, ok := rs.index[schema.NormalizeName(field)]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	for _, v := range rs.cols[c] {
		if v.IsMissing() || v.IsInvalid() {
			continue
		}
		seen[v.Text()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AssetTypes lists the distinct sectors on the tape.
func (rs *RecordSet) AssetTypes() []string {
	return rs.Distinct(SectorField)
}

func (rs *RecordSet) subset(rows []int) *RecordSet {
	out := &RecordSet{
		idField: rs.idField,
		columns: rs.columns,
		index:   rs.index,
		schema:  rs.schema,
		ids:     make([]string, len(rows)),
		cols:    make([][]convert.Value, len(rs.cols)),
	}
	for i, r := range rows {
		out.ids[i] = rs.ids[r]
	}
	for c := range rs.cols {
		col := make([]convert.Value, len(rows))
		for i, r := range rows {
			col[i] = rs.cols[c][r]
		}
		out.cols[c] = col
	}
	return out
}
