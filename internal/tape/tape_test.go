package tape

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder(convert.DefaultPolicy())
	for _, f := range []schema.FieldSpec{
		{Name: "loanid", Category: schema.CategoryStrings, Type: schema.TypeString},
		{Name: "bal_orig", Category: schema.CategoryFloats, Type: schema.TypeFloat64},
		{Name: "fico_orig", Category: schema.CategoryInts, Type: schema.TypeInt64},
		{Name: "orig_date", Category: schema.CategoryDates, Type: schema.TypeDate},
		{Name: "productdesc", Category: schema.CategoryStrings, Type: schema.TypeString},
		{Name: "sector", Category: schema.CategoryStrings, Type: schema.TypeString},
		{Name: "pmt_sched", Category: schema.CategoryArrays, Type: schema.TypeFloatArray},
	} {
		require.NoError(t, b.Add(f))
	}
	return b.Build()
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const sampleCSV = "\ufeffLoanID,Bal_Orig,FICO_Orig,Orig_Date,ProductDesc,Sector,PMT_Sched,Notes\n" +
	"10,\"$250,000\",712.5,2021-03-15,consumer_mortgage,mortgage,3 for 2,first\n" +
	"2,\"100,000\",N/A,2020-11-02,consumer_auto,auto,,\n" +
	"7,NA,680,bad-date,consumer_mortgage,mortgage,x for 2,third\n"

func TestLoadFileCSV(t *testing.T) {
	path := writeFile(t, "tape.csv", sampleCSV)

	rs, err := NewLoader(testSchema(t), Options{}).LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, rs.Len())
	assert.Equal(t, []string{"2", "7", "10"}, rs.IDs(), "numeric ids sort numerically")
	assert.Equal(t, "loanid", rs.IDField())
	assert.True(t, rs.HasColumn("BAL_ORIG"))
	assert.Equal(t, []string{"loanid", "bal_orig", "fico_orig", "orig_date", "productdesc", "sector", "pmt_sched", "notes"}, rs.Columns())

	tests := []struct {
		row   int
		field string
		want  convert.Value
	}{
		{2, "bal_orig", convert.Float(250000)},
		{2, "fico_orig", convert.Int(713)},
		{2, "orig_date", convert.Date(time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC))},
		{2, "pmt_sched", convert.FloatArray([]float64{3, 3})},
		{2, "notes", convert.String("first")},
		{0, "fico_orig", convert.Missing()},
		{0, "pmt_sched", convert.Missing()},
		{0, "notes", convert.Missing()},
		{1, "bal_orig", convert.Missing()},
		{1, "orig_date", convert.Missing()},
		{1, "absent", convert.Missing()},
	}
	for _, tt := range tests {
		got := rs.Get(tt.row, tt.field)
		assert.True(t, tt.want.Equal(got), "row %d %s: got %s", tt.row, tt.field, got.Text())
	}

	assert.True(t, rs.Get(1, "pmt_sched").IsInvalid())
	var rampErr *apperrors.MalformedRampError
	assert.True(t, errors.As(rs.Get(1, "pmt_sched").Err(), &rampErr))
}

func TestLoadFileTSVAndHeaderMap(t *testing.T) {
	path := writeFile(t, "tape.txt", "id\tbalance\n1\t1,500\n2\t2500\n")

	rs, err := NewLoader(testSchema(t), Options{
		HeaderMap: map[string]string{"ID": "loanid", "Balance": "bal_orig"},
	}).LoadFile(context.Background(), path)
	require.NoError(t, err)

	bal, ok := rs.Floats("bal_orig")
	require.True(t, ok)
	assert.Equal(t, []float64{1500, 2500}, bal)
}

func TestLoadFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"loanid", "bal_orig", "orig_date"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"A-1", 1000.5, 45306}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"A-2", 2000, "2023-06-30"}))
	path := filepath.Join(t.TempDir(), "tape.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rs, err := NewLoader(testSchema(t), Options{}).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	d, ok := rs.Get(0, "orig_date").AsDate()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d)

	d, ok = rs.Get(1, "orig_date").AsDate()
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), d)

	bal, _ := rs.Floats("bal_orig")
	assert.Equal(t, []float64{1000.5, 2000}, bal)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		body   string
		target error
	}{
		{"unsupported extension", "tape.json", "{}", apperrors.ErrUnsupportedFormat},
		{"missing id column", "tape.csv", "bal_orig\n1\n", apperrors.ErrMissingRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.body)
			_, err := NewLoader(testSchema(t), Options{}).LoadFile(context.Background(), path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		path := writeFile(t, "tape.csv", "loanid\n1\n1\n")
		_, err := NewLoader(nil, Options{}).LoadFile(context.Background(), path)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
	})

	t.Run("blank id", func(t *testing.T) {
		path := writeFile(t, "tape.csv", "loanid,x\n1,a\nNA,b\n")
		_, err := NewLoader(nil, Options{}).LoadFile(context.Background(), path)
		require.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "tape.csv", "")
		_, err := NewLoader(nil, Options{}).LoadFile(context.Background(), path)
		require.Error(t, err)
	})
}

func TestLoadTableCustomIDField(t *testing.T) {
	rs, err := NewLoader(nil, Options{IDField: "AssetID", Workers: 1}).LoadTable(context.Background(),
		[]string{"AssetID", "Sector"},
		[][]string{{"b", "auto"}, {"a", "mortgage"}, {"c", "auto"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, rs.IDs())
	assert.Equal(t, []string{"auto", "mortgage"}, rs.AssetTypes())
}

func TestRecordSetViews(t *testing.T) {
	path := writeFile(t, "tape.csv", sampleCSV)
	rs, err := NewLoader(testSchema(t), Options{}).LoadFile(context.Background(), path)
	require.NoError(t, err)

	t.Run("floats", func(t *testing.T) {
		fico, ok := rs.Floats("fico_orig")
		require.True(t, ok)
		assert.True(t, math.IsNaN(fico[0]))
		assert.Equal(t, 680.0, fico[1])
		_, ok = rs.Floats("absent")
		assert.False(t, ok)
	})

	t.Run("partition", func(t *testing.T) {
		parts := rs.Partition("productdesc")
		require.Len(t, parts, 2)
		assert.Equal(t, []string{"7", "10"}, parts["consumer_mortgage"].IDs())
		assert.Equal(t, []string{"2"}, parts["consumer_auto"].IDs())
	})

	t.Run("filter", func(t *testing.T) {
		big := rs.Filter(func(r Record) bool {
			f, ok := r.Get("bal_orig").AsFloat()
			return ok && f > 150000
		})
		assert.Equal(t, []string{"10"}, big.IDs())
		assert.Equal(t, 3, rs.Len(), "filter leaves the source untouched")
	})

	t.Run("column copy", func(t *testing.T) {
		col, ok := rs.Column("notes")
		require.True(t, ok)
		col[0] = convert.String("changed")
		assert.True(t, rs.Get(0, "notes").IsMissing())
	})

	t.Run("column kind", func(t *testing.T) {
		assert.Equal(t, convert.KindFloat, rs.ColumnKind("bal_orig"))
		assert.Equal(t, convert.KindInt, rs.ColumnKind("fico_orig"))
		assert.Equal(t, convert.KindString, rs.ColumnKind("sector"))
		assert.Equal(t, convert.KindDate, rs.ColumnKind("orig_date"))
	})

	t.Run("missing columns", func(t *testing.T) {
		assert.Equal(t, []string{"bal_curr", "state"}, rs.MissingColumns([]string{"State", "bal_orig", "bal_curr"}))
	})
}

func TestLoadHeaderMap(t *testing.T) {
	csvPath := writeFile(t, "map.csv", "source_field,mapped_field\nOrig Balance,bal_orig\nCredit Score,fico_orig\nIgnored,\n")
	m, err := LoadHeaderMap(csvPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"orig balance": "bal_orig", "credit score": "fico_orig"}, m)

	yamlPath := writeFile(t, "map.yaml", "Orig Balance: BAL_ORIG\n")
	m, err = LoadHeaderMap(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"orig balance": "bal_orig"}, m)

	_, err = LoadHeaderMap(writeFile(t, "map.csv", "a,b\nx,y\n"))
	assert.Error(t, err)

	_, err = LoadHeaderMap(writeFile(t, "map.json", "{}"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.csv":  FormatCSV,
		"a.TSV":  FormatTSV,
		"a.txt":  FormatTSV,
		"a.xlsx": FormatXLSX,
	}
	for path, want := range tests {
		got, err := DetectFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DetectFormat("a.parquet")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}
