package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldRow renders one schema row with the given asset class flags set.
func fieldRow(name, desc, category, dataType, stratFlag, stratType, sumSet string, required bool, classes ...AssetClass) []string {
	row := []string{name, desc, category, dataType, "desc of " + name, "", "", stratFlag, stratType, sumSet}
	for _, c := range AssetClasses {
		flag := "false"
		for _, want := range classes {
			if c == want {
				flag = "TRUE"
			}
		}
		row = append(row, flag)
	}
	if required {
		row = append(row, "true")
	} else {
		row = append(row, "false")
	}
	return row
}

func writeSchema(t *testing.T, header []string, rows ...[]string) string {
	t.Helper()
	lines := []string{strings.Join(header, ",")}
	for _, r := range rows {
		lines = append(lines, strings.Join(r, ","))
	}
	path := filepath.Join(t.TempDir(), "fields.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func sampleRows() [][]string {
	return [][]string{
		fieldRow("LoanID", "uniqueid", "strings", "str", "false", "none", "", true, AssetGenericLoan),
		fieldRow("bal_orig", "numeric", "floats", "float64", "false", "none", "summary", true, AssetGenericLoan, AssetConsumerMortgage),
		fieldRow("bal_curr", "numeric", "floats", "np.float64", "n", "none", "summary", true, AssetGenericLoan, AssetConsumerMortgage),
		fieldRow("fico_orig", "numeric", "ints", "int32", "true", "bucket_fixed", "summary", false, AssetConsumerMortgage, AssetConsumerAuto),
		fieldRow("term_orig", "numeric", "ints", "int", "y", "bucketfixed", "summary", false, AssetConsumerMortgage),
		fieldRow("state", "categorical", "strs", "enum", "y(e)", "uniquevalue", "summary", false, AssetConsumerMortgage),
		fieldRow("date_orig", "date", "dates", "datetime.date", "True", "vintageq", "", false, AssetGenericLoan),
		fieldRow("io_flag", "flag", "bools", "bool", "false", "none", "", false, AssetConsumerMortgage),
		fieldRow("pmt_sched", "numeric", "arrays", "ramp", "false", "none", "", false, AssetCommercialABL),
		fieldRow("pmt_sched_dates", "date", "arrays", "dates", "false", "none", "", false, AssetCommercialABL),
		fieldRow("svc_fee_gross", "numeric", "floats", "float", "false", "none", "servicing", false, AssetConsumerMortgage),
	}
}

func TestLoad_ValidSchema(t *testing.T) {
	path := writeSchema(t, RequiredColumns, sampleRows()...)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, s.Path())
	assert.Equal(t, 11, s.Len())
	assert.Equal(t, "loanid", s.FieldNames()[0])

	assert.Equal(t, []string{"loanid", "state"}, s.FieldsByCategory(CategoryStrings))
	assert.Equal(t, []string{"bal_orig", "bal_curr", "svc_fee_gross"}, s.FieldsByCategory(CategoryFloats))
	assert.Equal(t, []string{"fico_orig", "term_orig"}, s.FieldsByCategory(CategoryInts))
	assert.Equal(t, []string{"date_orig"}, s.FieldsByCategory(CategoryDates))
	assert.Equal(t, []string{"io_flag"}, s.FieldsByCategory(CategoryBools))
	assert.Equal(t, []string{"pmt_sched", "pmt_sched_dates"}, s.FieldsByCategory(CategoryArrays))

	typ, ok := s.TypeOf("FICO_ORIG")
	require.True(t, ok)
	assert.Equal(t, TypeInt32, typ)

	assert.Equal(t, []string{"loanid", "bal_orig", "bal_curr", "date_orig"}, s.FieldsForAssetClass(AssetGenericLoan))
	assert.Equal(t, []string{"fico_orig"}, s.FieldsForAssetClass(AssetConsumerAuto))
	assert.Empty(t, s.FieldsForAssetClass(AssetCommercialBullet))

	assert.Equal(t, []string{"loanid", "bal_orig", "bal_curr"}, s.RequiredFields())
	assert.Equal(t, []string{"bal_orig", "bal_curr"}, s.RequiredFieldsFor(AssetConsumerMortgage))

	assert.Equal(t, []string{"fico_orig", "term_orig", "state", "date_orig"}, s.StratifyByFields())
	summary := s.StratifySummaryFields()
	assert.Equal(t, []string{"bal_orig", "bal_curr", "fico_orig", "term_orig", "state"}, summary[SetSummary])
	assert.Equal(t, []string{"svc_fee_gross"}, summary[SetServicing])

	state, _ := s.Field("state")
	assert.True(t, state.StratExtended)
	assert.Equal(t, StratUniqueValue, state.StratType)
	assert.Equal(t, CategoryStrings, state.Category)

	vintage, _ := s.Field("date_orig")
	assert.Equal(t, StratVintageQuarter, vintage.StratType)
	assert.True(t, vintage.StratType.IsVintage())

	balCurr, _ := s.Field("bal_curr")
	assert.False(t, balCurr.Stratify)
	assert.Equal(t, StratNone, balCurr.StratType)
}

func TestLoad_ConverterTable(t *testing.T) {
	s, err := Load(writeSchema(t, RequiredColumns, sampleRows()...))
	require.NoError(t, err)

	tests := []struct {
		field string
		raw   interface{}
		want  convert.Kind
		text  string
	}{
		{field: "bal_curr", raw: "$125,000.50", want: convert.KindFloat, text: "125000.5"},
		{field: "fico_orig", raw: "712.6", want: convert.KindInt, text: "713"},
		{field: "state", raw: "CA", want: convert.KindString, text: "CA"},
		{field: "date_orig", raw: "2021-06-30", want: convert.KindDate, text: "2021-06-30"},
		{field: "io_flag", raw: "Y", want: convert.KindBool, text: "True"},
		{field: "pmt_sched", raw: "1 for 2", want: convert.KindFloatArray, text: "[1, 1]"},
		{field: "pmt_sched_dates", raw: "2024-01-01;2024-02-01", want: convert.KindDateArray, text: "[2024-01-01, 2024-02-01]"},
		{field: "bal_orig", raw: "n/a", want: convert.KindMissing, text: ""},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			conv, ok := s.ConverterFor(tt.field)
			require.True(t, ok)
			got := conv(tt.raw)
			assert.Equal(t, tt.want, got.Kind())
			assert.Equal(t, tt.text, got.Text())
		})
	}

	_, ok := s.ConverterFor("not_a_field")
	assert.False(t, ok)
	assert.Len(t, s.Converters(), 11)
}

func TestLoad_ArrayNamedFieldOverridesCategory(t *testing.T) {
	rows := [][]string{
		fieldRow("pmt_draw_sched", "numeric", "strings", "str", "false", "none", "", false),
	}
	s, err := Load(writeSchema(t, RequiredColumns, rows...))
	require.NoError(t, err)

	conv, _ := s.ConverterFor("pmt_draw_sched")
	assert.Equal(t, convert.KindFloatArray, conv("0 ramp 2").Kind())
}

func TestLoad_FileGate(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "fields.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "absent.csv")},
		{name: "wrong extension", path: txt},
		{name: "directory", path: func() string {
			d := filepath.Join(dir, "folder.csv")
			require.NoError(t, os.Mkdir(d, 0755))
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfigFileNotFound))
		})
	}
}

func TestLoad_HeaderGate(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		header := append([]string(nil), RequiredColumns[:9]...)
		header = append(header, RequiredColumns[10:]...)

		_, err := Load(writeSchema(t, header))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrConfigHeaderMismatch))

		var headerErr *apperrors.ConfigHeaderMismatchError
		require.True(t, errors.As(err, &headerErr))
		assert.Equal(t, RequiredColumns, headerErr.Expected)
		assert.Len(t, headerErr.Actual, len(RequiredColumns)-1)
	})

	t.Run("reordered columns", func(t *testing.T) {
		header := append([]string(nil), RequiredColumns...)
		header[0], header[1] = header[1], header[0]

		_, err := Load(writeSchema(t, header))
		assert.True(t, errors.Is(err, apperrors.ErrConfigHeaderMismatch))
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := Load(path)
		assert.True(t, errors.Is(err, apperrors.ErrConfigHeaderMismatch))
	})

	t.Run("byte order mark is ignored", func(t *testing.T) {
		header := append([]string(nil), RequiredColumns...)
		header[0] = "\ufeff" + header[0]

		_, err := Load(writeSchema(t, header, sampleRows()...))
		assert.NoError(t, err)
	})
}

func TestLoad_RowGate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(rows [][]string)
		wantRow   int
		wantField string
	}{
		{
			name:      "strat type out of enumeration",
			mutate:    func(rows [][]string) { rows[1][8] = "sometimes" },
			wantRow:   2,
			wantField: "StratType",
		},
		{
			name:      "data category unknown",
			mutate:    func(rows [][]string) { rows[3][2] = "decimals" },
			wantRow:   4,
			wantField: "DataCategory",
		},
		{
			name:      "flag column not boolean",
			mutate:    func(rows [][]string) { rows[0][12] = "maybe" },
			wantRow:   1,
			wantField: "ConsumerMortgage",
		},
		{
			name:      "required column not boolean",
			mutate:    func(rows [][]string) { rows[4][23] = "yes" },
			wantRow:   5,
			wantField: "Required",
		},
		{
			name:      "blank field name",
			mutate:    func(rows [][]string) { rows[2][0] = "  " },
			wantRow:   3,
			wantField: "FieldName",
		},
		{
			name:      "duplicate field name ignoring case",
			mutate:    func(rows [][]string) { rows[5][0] = " BAL_ORIG " },
			wantRow:   6,
			wantField: "FieldName",
		},
		{
			name:      "unknown data type",
			mutate:    func(rows [][]string) { rows[1][3] = "decimal128" },
			wantRow:   2,
			wantField: "DataType",
		},
		{
			name:      "unknown summary set",
			mutate:    func(rows [][]string) { rows[1][9] = "totals" },
			wantRow:   2,
			wantField: "StratSumSet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := sampleRows()
			tt.mutate(rows)

			_, err := Load(writeSchema(t, RequiredColumns, rows...))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfigRowInvalid))

			var rowErr *apperrors.ConfigRowInvalidError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, tt.wantRow, rowErr.Row)
			assert.Equal(t, tt.wantField, rowErr.Field)
			assert.NotEmpty(t, rowErr.Expected)
		})
	}
}

func TestLoad_RowGateReportsExpectedAndActual(t *testing.T) {
	rows := sampleRows()
	rows[1][8] = " SomeTimes "

	_, err := Load(writeSchema(t, RequiredColumns, rows...))
	var rowErr *apperrors.ConfigRowInvalidError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, "sometimes", rowErr.Actual)
	assert.Contains(t, rowErr.Expected, "bucket_fixed")
	assert.Contains(t, rowErr.Expected, "vintage_quarter")
}

func TestLoad_ShortRow(t *testing.T) {
	rows := sampleRows()
	rows[0] = rows[0][:20]

	_, err := Load(writeSchema(t, RequiredColumns, rows...))
	var rowErr *apperrors.ConfigRowInvalidError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Row)
	assert.Equal(t, "20 columns", rowErr.Actual)
}

func TestLoader_StateTransitions(t *testing.T) {
	loader := NewLoader(convert.DefaultPolicy(), nil)
	assert.Equal(t, StateUnloaded, loader.State())
	assert.Nil(t, loader.Current())

	good := writeSchema(t, RequiredColumns, sampleRows()...)
	s, err := loader.Load(good)
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, loader.State())
	assert.Same(t, s, loader.Current())
	assert.NoError(t, loader.Err())

	bad := sampleRows()
	bad[0][2] = "decimals"
	_, err = loader.Load(writeSchema(t, RequiredColumns, bad...))
	require.Error(t, err)
	assert.Equal(t, StateRejected, loader.State())
	assert.Nil(t, loader.Current())
	assert.ErrorIs(t, loader.Err(), apperrors.ErrConfigRowInvalid)

	// the earlier schema value is untouched
	assert.Equal(t, 11, s.Len())
	assert.Equal(t, "REJECTED", loader.State().String())
}

func TestLoader_Parse(t *testing.T) {
	var b strings.Builder
	b.WriteString(strings.Join(RequiredColumns, ",") + "\n")
	b.WriteString(strings.Join(fieldRow("rate_margin", "numeric", "floats", "float", "true", "bucket_auto", "summary", true, AssetGenericLoan), ",") + "\n")

	s, err := NewLoader(convert.DefaultPolicy(), nil).Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, []string{"rate_margin"}, s.StratifyByFields())
	assert.Equal(t, "", s.Path())
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(convert.DefaultPolicy())
	require.NoError(t, b.Add(FieldSpec{Name: " Bal_Curr ", Category: CategoryFloats, Type: TypeFloat64}))

	err := b.Add(FieldSpec{Name: "bal_curr", Category: CategoryFloats})
	assert.Error(t, err)

	err = b.Add(FieldSpec{Name: "x", Category: "decimals"})
	assert.Error(t, err)

	err = b.Add(FieldSpec{Name: "", Category: CategoryFloats})
	assert.Error(t, err)

	s := b.WithPath("mem").Build()
	assert.True(t, s.Has("BAL_CURR"))
	assert.Equal(t, "mem", s.Path())
	f, _ := s.Field("bal_curr")
	assert.Equal(t, StratNone, f.StratType)
	assert.Equal(t, ShapeScalar, f.Shape)
}

func TestSchema_AccessorsReturnCopies(t *testing.T) {
	s, err := Load(writeSchema(t, RequiredColumns, sampleRows()...))
	require.NoError(t, err)

	fields := s.FieldsByCategory(CategoryFloats)
	fields[0] = "mutated"
	assert.Equal(t, "bal_orig", s.FieldsByCategory(CategoryFloats)[0])

	specs := s.Fields()
	specs[0].Name = "mutated"
	assert.Equal(t, "loanid", s.Fields()[0].Name)
}

func TestParseAssetClass(t *testing.T) {
	tests := []struct {
		in   string
		want AssetClass
		ok   bool
	}{
		{in: "ConsumerMortgage", want: AssetConsumerMortgage, ok: true},
		{in: "consumer_mortgage", want: AssetConsumerMortgage, ok: true},
		{in: " COMMERCIAL_ABL ", want: AssetCommercialABL, ok: true},
		{in: "consumer_heloc", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAssetClass(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSummarySet(t *testing.T) {
	tests := []struct {
		in   string
		want SummarySet
		ok   bool
	}{
		{"", SetNone, true},
		{"Summary", SetSummary, true},
		{" utilization ", SetUtilization, true},
		{"servicing", SetServicing, true},
		{"summary_extended", SetSummaryExtended, true},
		{"weekly", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSummarySet(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
