package exporter

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tapestrat/internal/strat"
)

func TestWorkbookWriter_WritePackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "strats.xlsx")
	require.NoError(t, NewWorkbookWriter(nil).WritePackage(path, samplePackage()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "consumer_mortgage_fico_orig", "consumer_auto_fico_orig"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", "7d3f4c2e-0000-4000-8000-000000000001"}, summary[0])
	assert.Equal(t, []string{"failures", "1"}, summary[4])
	assert.Equal(t, []string{"asset_class", "field", "error"}, summary[6])
	assert.Equal(t, strat.ConsumerCard, summary[7][0])

	rows, err := f.GetRows("consumer_mortgage_fico_orig")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"fico_orig", "count", "count_pct", "factor", "wa_origrate"}, rows[0])
	assert.Equal(t, "NA", rows[2][3])
	assert.Equal(t, "Total", rows[4][0])

	// Statistics are stored as numbers, not text.
	cellType, err := f.GetCellType("consumer_mortgage_fico_orig", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	v, err := f.GetCellValue("consumer_mortgage_fico_orig", "C2")
	require.NoError(t, err)
	assert.Equal(t, "66.667", v)
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"summary": true}
	long := &strat.Table{AssetClass: strat.CommercialAmortizing, Field: "bal_limit_curr"}

	first := sheetName(long, used)
	second := sheetName(long, used)
	assert.LessOrEqual(t, len(first), maxSheetNameLen)
	assert.LessOrEqual(t, len(second), maxSheetNameLen)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "~2"))

	odd := &strat.Table{Field: "rate[1]/x"}
	assert.Equal(t, "strat_rate_1_x", sheetName(odd, used))
}

func TestTableFileName(t *testing.T) {
	assert.Equal(t, "consumer_mortgage_fico_orig.csv", TableFileName(sampleTable(), ".csv"))
	assert.Equal(t, "strat_state.json", TableFileName(&strat.Table{Field: "state"}, ".json"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0.055", formatFloat(0.055))
	assert.Equal(t, "", formatFloat(math.NaN()))
	assert.Equal(t, "12", formatInt(12))
	assert.Equal(t, "false", formatBool(false))

	_, ok := numeric(strat.NotApplicable())
	assert.False(t, ok)
	v, ok := numeric(strat.ValueCell(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, sampleTable()))

	var decoded struct {
		Field string `json:"field"`
		Rows  []struct {
			Label string        `json:"label"`
			Cells []interface{} `json:"cells"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "fico_orig", decoded.Field)
	assert.Equal(t, "NA", decoded.Rows[1].Cells[2])
	assert.Nil(t, decoded.Rows[1].Cells[3])

	path := filepath.Join(t.TempDir(), "nested", "pkg.json")
	require.NoError(t, WriteJSON(path, samplePackage()))
}
