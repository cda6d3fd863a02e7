package strat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/schema"
	"tapestrat/internal/tape"
)

// mortgageTape holds three consumer mortgages and one auto loan.
func mortgageTape(t *testing.T, s *schema.Schema) *tape.RecordSet {
	t.Helper()
	return buildTape(t, s, map[string][]convert.Value{
		"productdesc":    strs(ConsumerMortgage, ConsumerMortgage, ConsumerMortgage, ConsumerAuto),
		"bal_orig":       floats(100, 300, 200, 50),
		"bal_curr":       floats(80, 240, 100, 40),
		"rate_margin":    floats(0.04, 0.06, 0.05, 0.09),
		"term_orig":      ints(360, 360, 180, 60),
		"term_rem":       ints(300, 350, 100, 50),
		"fico_orig":      ints(700, 760, 650, 610),
		"fico_curr":      ints(710, 750, 640, 600),
		"uw_ltv_orig":    floats(80, 60, 90, 100),
		"bal_orig_cum":   floats(100, 300, 200, 50),
		"prop_appraisal": floats(125, 500, 250, 50),
		"uw_dti_orig":    floats(30, 40, 45, 20),
		"fc_status":      flags(false, true, false, false),
		"bk_status":      flags(false, false, true, false),
		"state":          strs("CA", "CA", "TX", "NY"),
		"mod_type":       strs("", "", "", ""),
	})
}

func TestStratifySummary(t *testing.T) {
	rs := mortgageTape(t, nil)

	table, err := Stratify(context.Background(), rs, ConsumerMortgage, "fico_orig", Options{})
	require.NoError(t, err)

	assert.Equal(t, schema.SetSummary, table.Set)
	assert.Equal(t, "fico", table.Buckets.Preset)
	assert.Equal(t, []string{
		"count", "count_pct", "origbal", "origbal_pct", "currbal", "currbal_pct", "factor",
		"wa_origrate", "wa_origterm", "wa_remterm", "wa_origfico", "wa_currfico",
		"wa_origltv", "wa_origcltv", "wa_origdti", "fc_pct", "bk_pct", "CA_pct", "TX_pct",
	}, table.Columns, "dq_pct is dropped without a dq_status column")
	assert.Len(t, table.Rows, 12, "every preset bucket is listed, with no overflow or missing row")
	assert.Equal(t, "fico_orig", table.Header()[0])

	cell := func(label, column string) Cell {
		t.Helper()
		c, ok := table.Cell(label, column)
		require.True(t, ok, "%s/%s", label, column)
		return c
	}
	value := func(label, column string) float64 {
		t.Helper()
		v, ok := cell(label, column).Float()
		require.True(t, ok, "%s/%s holds no value", label, column)
		return v
	}

	tests := []struct {
		label  string
		column string
		want   float64
	}{
		{LabelTotal, "count", 3},
		{LabelTotal, "count_pct", 100},
		{LabelTotal, "origbal", 600},
		{LabelTotal, "currbal", 420},
		{LabelTotal, "factor", 70},
		{LabelTotal, "wa_origrate", 32.0 / 600},
		{LabelTotal, "wa_origterm", 300},
		{LabelTotal, "wa_origfico", 713},
		{LabelTotal, "wa_origcltv", 600.0 / 875},
		{LabelTotal, "fc_pct", 33.333},
		{LabelTotal, "bk_pct", 33.333},
		{LabelTotal, "CA_pct", 66.667},
		{LabelTotal, "TX_pct", 33.333},
		{"(740, 760]", "count", 1},
		{"(740, 760]", "count_pct", 33.333},
		{"(740, 760]", "origbal_pct", 50},
		{"(740, 760]", "wa_origrate", 0.06},
		{"(740, 760]", "wa_currfico", 750},
		{"(740, 760]", "fc_pct", 100},
		{"(740, 760]", "CA_pct", 100},
		{"(740, 760]", "TX_pct", 0},
		{"(640, 660]", "factor", 50},
		{"(780, 800]", "count", 0},
		{"(780, 800]", "count_pct", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, value(tt.label, tt.column), 1e-9, "%s/%s", tt.label, tt.column)
	}

	assert.Equal(t, CellNotApplicable, cell("(780, 800]", "factor").Kind, "empty bucket has no factor")
	assert.Equal(t, CellNoData, cell("(780, 800]", "wa_origrate").Kind)
	assert.Empty(t, table.Notes, "empty buckets are not reported")
	assert.Equal(t, 3, table.Total.Records)

	records := table.Records()
	require.Len(t, records, 13)
	assert.Equal(t, LabelTotal, records[12][0])
	assert.Equal(t, "3", records[12][1])
}

func TestStratifyTwoEqualGroups(t *testing.T) {
	rs := buildTape(t, nil, map[string][]convert.Value{
		"group":       strs("a", "a", "b", "b"),
		"bal_orig":    floats(250, 750, 500, 500),
		"rate_margin": floats(0.03, 0.05, 0.04, 0.06),
	})
	set := schema.SetNone
	table, err := Stratify(context.Background(), rs, "", "group", Options{Set: set})
	require.NoError(t, err)

	assert.Equal(t, []string{"count", "count_pct", "origbal", "origbal_pct"}, table.Columns,
		"balance columns without bal_curr")
	a, _ := table.Cell("a", "origbal_pct")
	b, _ := table.Cell("b", "origbal_pct")
	assert.Equal(t, 50.0, a.Value)
	assert.Equal(t, 50.0, b.Value)
}

func TestStratifyUtilization(t *testing.T) {
	rs := buildTape(t, nil, map[string][]convert.Value{
		"productdesc":    strs(ConsumerCard, ConsumerCard, ConsumerCard),
		"bal_orig":       floats(0, 0, 0),
		"bal_curr":       floats(500, 1500, 0),
		"bal_limit_curr": floats(1000, 2000, 0),
		"rate_margin":    floats(0.2, 0.25, 0.22),
		"fico_orig":      ints(700, 720, 680),
		"fico_curr":      ints(690, 730, 670),
		"fc_status":      flags(false, false, false),
		"bk_status":      flags(false, false, false),
		"state":          strs("NY", "NJ", "NJ"),
	})

	table, err := Stratify(context.Background(), rs, ConsumerCard, "state", Options{TopStates: 1})
	require.NoError(t, err)
	assert.Equal(t, schema.SetUtilization, table.Set)
	assert.Equal(t, []string{"NJ", "NY"}, table.Buckets.Labels())
	assert.Contains(t, table.Columns, "NJ_pct")
	assert.NotContains(t, table.Columns, "NY_pct")

	util, _ := table.Cell(LabelTotal, "currutil")
	assert.InDelta(t, 66.667, util.Value, 1e-9)
	nj, _ := table.Cell("NJ", "currutil")
	assert.Equal(t, 75.0, nj.Value)

	// Zero original balances fall back to a plain mean of the rates.
	rate, _ := table.Cell(LabelTotal, "wa_origrate")
	assert.InDelta(t, (0.2+0.25+0.22)/3, rate.Value, 1e-12)
}

func TestStratifyTopStatesSpelling(t *testing.T) {
	tests := []struct {
		name   string
		states []string
		want   map[string]float64
		absent []string
	}{
		{
			name:   "name and code pool together",
			states: []string{"California", "CA", "ca"},
			want:   map[string]float64{"CA_pct": 100},
			absent: []string{"CALIFORNIA_pct"},
		},
		{
			name:   "ranked after standardizing",
			states: []string{"new jersey", "NJ", "NY"},
			want:   map[string]float64{"NJ_pct": 66.667, "NY_pct": 33.333},
			absent: []string{"NEW JERSEY_pct"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := buildTape(t, nil, map[string][]convert.Value{
				"productdesc":    strs(ConsumerCard, ConsumerCard, ConsumerCard),
				"bal_orig":       floats(0, 0, 0),
				"bal_curr":       floats(500, 1500, 0),
				"bal_limit_curr": floats(1000, 2000, 0),
				"rate_margin":    floats(0.2, 0.25, 0.22),
				"fico_orig":      ints(700, 720, 680),
				"fico_curr":      ints(690, 730, 670),
				"fc_status":      flags(false, false, false),
				"bk_status":      flags(false, false, false),
				"state":          strs(tt.states...),
			})

			table, err := Stratify(context.Background(), rs, ConsumerCard, "fico_orig", Options{})
			require.NoError(t, err)
			for col, want := range tt.want {
				cell, ok := table.Cell(LabelTotal, col)
				require.True(t, ok, "column %s", col)
				assert.InDelta(t, want, cell.Value, 1e-9)
			}
			for _, col := range tt.absent {
				assert.NotContains(t, table.Columns, col)
			}
		})
	}
}

func TestStratifyServicing(t *testing.T) {
	cols := map[string][]convert.Value{
		"productdesc": strs(ConsumerServicing, ConsumerServicing),
		"bal_orig":    floats(100, 100),
		"bal_curr":    floats(25, 75),
		"rate_margin": floats(0.04, 0.08),
		"mod_type":    strs("rate", ""),
		"fc_status":   flags(false, false),
		"bk_status":   flags(false, false),
	}
	for _, f := range []string{
		"svc_rate_pt", "svc_fee_gross", "svc_fee_net", "svc_fee_gtee", "svc_fee_late",
		"svc_fee_pmt", "svc_adv_balrec", "svc_adv_balnorec", "svc_adv_tp_balrec",
		"esc_currbal", "esc_advbal",
	} {
		cols[f] = floats(1, 2)
	}
	rs := buildTape(t, nil, cols)

	table, err := Stratify(context.Background(), rs, ConsumerServicing, "rate_margin",
		Options{Edges: []float64{0.05, 0.1}})
	require.NoError(t, err)
	assert.Equal(t, schema.SetServicing, table.Set)

	rate, _ := table.Cell(LabelTotal, "wa_rate")
	assert.InDelta(t, 0.07, rate.Value, 1e-12, "weighted by current balance")
	fee, _ := table.Cell(LabelTotal, "wa_svcfee_gross")
	assert.InDelta(t, 1.75, fee.Value, 1e-12)
	mod, _ := table.Cell(LabelTotal, "mod_pct")
	assert.Equal(t, 50.0, mod.Value)
	low, _ := table.Cell("<= 0.05", "currbal_pct")
	assert.Equal(t, 25.0, low.Value)
}

func TestStratifyOverflowAndMissingRows(t *testing.T) {
	rs := buildTape(t, nil, map[string][]convert.Value{
		"bal_orig": floats(100, 200, 300, nan),
		"bal_curr": floats(90, 180, 270, 10),
	})

	table, err := Stratify(context.Background(), rs, "", "bal_orig",
		Options{Set: schema.SetNone, Edges: []float64{150, 250}})
	require.NoError(t, err)

	var labels []string
	for _, r := range table.Rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"<= 150", "(150, 250]", "> 250", LabelMissing}, labels)

	missing, _ := table.Cell(LabelMissing, "currbal")
	assert.Equal(t, 10.0, missing.Value)
	count, _ := table.Cell(LabelMissing, "count")
	assert.Equal(t, 0.0, count.Value, "count follows bal_orig")
	assert.Equal(t, 4, table.Total.Records)
}

func TestStratifyNoValidDataNote(t *testing.T) {
	rs := mortgageTape(t, nil)
	cols := map[string][]convert.Value{}
	for _, name := range rs.Columns() {
		if name == "loanid" {
			continue
		}
		col, _ := rs.Column(name)
		cols[name] = col
	}
	cols["uw_dti_orig"] = floats(nan, 40, 45, 20)
	rs = buildTape(t, nil, cols)

	table, err := Stratify(context.Background(), rs, ConsumerMortgage, "fico_orig",
		Options{Zero: ExcludeMissing})
	require.NoError(t, err)

	dti, _ := table.Cell("(680, 700]", "wa_origdti")
	assert.Equal(t, CellNoData, dti.Kind)
	assert.Contains(t, table.Notes, "(680, 700]: no valid data for wa_origdti")

	total, _ := table.Cell(LabelTotal, "wa_origdti")
	assert.InDelta(t, (300*40+200*45)/500.0, total.Value, 1e-9, "missing values are excluded")

	filled, err := Stratify(context.Background(), rs, ConsumerMortgage, "fico_orig",
		Options{Zero: FillWith(10)})
	require.NoError(t, err)
	fdti, _ := filled.Cell("(680, 700]", "wa_origdti")
	assert.Equal(t, ValueCell(10), fdti, "an all-missing group averages the fill value")
	assert.NotContains(t, filled.Notes, "(680, 700]: no valid data for wa_origdti")

	b, err := json.Marshal(table)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"summary_set":"summary"`)
}

func TestStratifyErrors(t *testing.T) {
	full := mortgageTape(t, nil)
	thin := buildTape(t, nil, map[string][]convert.Value{
		"productdesc": strs(ConsumerMortgage),
		"bal_orig":    floats(100),
		"fico_orig":   ints(700),
	})

	t.Run("every missing required field is listed", func(t *testing.T) {
		_, err := Stratify(context.Background(), thin, ConsumerMortgage, "fico_orig", Options{})
		var mr *apperrors.MissingRequiredFieldError
		require.ErrorAs(t, err, &mr)
		assert.True(t, errors.Is(err, apperrors.ErrMissingRequiredField))
		assert.Equal(t, ConsumerMortgage, mr.AssetClass)
		assert.Equal(t, []string{
			"bal_curr", "bal_orig_cum", "bk_status", "fc_status", "fico_curr", "mod_type",
			"prop_appraisal", "rate_margin", "state", "term_orig", "term_rem", "uw_dti_orig",
			"uw_ltv_orig",
		}, mr.Fields)
	})

	t.Run("schema required fields for the class", func(t *testing.T) {
		b := schema.NewBuilder(convert.DefaultPolicy())
		require.NoError(t, b.Add(schema.FieldSpec{
			Name: "lien_pos", Category: schema.CategoryInts, Required: true,
			AssetClasses: []schema.AssetClass{schema.AssetConsumerMortgage},
		}))
		require.NoError(t, b.Add(schema.FieldSpec{
			Name: "vin", Category: schema.CategoryStrings, Required: true,
			AssetClasses: []schema.AssetClass{schema.AssetConsumerAuto},
		}))
		rs := mortgageTape(t, b.Build())

		_, err := Stratify(context.Background(), rs, ConsumerMortgage, "fico_orig", Options{})
		var mr *apperrors.MissingRequiredFieldError
		require.ErrorAs(t, err, &mr)
		assert.Equal(t, []string{"lien_pos"}, mr.Fields)
	})

	tests := []struct {
		name  string
		class string
		field string
		opts  Options
		is    error
		kind  apperrors.ErrorType
	}{
		{name: "absent variable", class: ConsumerMortgage, field: "nope", is: apperrors.ErrUnsupportedVariable},
		{name: "unknown class", class: "boats", field: "fico_orig", kind: apperrors.ErrTypeStratification},
		{name: "unsupported set", class: ConsumerMortgage, field: "fico_orig",
			opts: Options{Set: schema.SetPerformance}, kind: apperrors.ErrTypeStratification},
		{name: "class not on the tape", class: ConsumerStudent, field: "fico_orig", kind: apperrors.ErrTypeStratification},
		{name: "bad edges", class: ConsumerMortgage, field: "fico_orig",
			opts: Options{Edges: []float64{2, 1}}, is: apperrors.ErrUnsupportedVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Stratify(context.Background(), full, tt.class, tt.field, tt.opts)
			require.Error(t, err)
			assert.Nil(t, table)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
			if tt.kind != "" {
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.kind, appErr.Type)
			}
		})
	}
}

func TestDefaultSetFor(t *testing.T) {
	assert.Equal(t, schema.SetUtilization, DefaultSetFor(ConsumerCard))
	assert.Equal(t, schema.SetUtilization, DefaultSetFor(ConsumerHELOC))
	assert.Equal(t, schema.SetServicing, DefaultSetFor(ConsumerServicing))
	assert.Equal(t, schema.SetSummary, DefaultSetFor(CommercialABL))
	assert.Equal(t, schema.SetSummary, DefaultSetFor(""))

	for _, c := range ProductClasses {
		assert.True(t, IsProductClass(c), c)
	}
	assert.False(t, IsProductClass("boats"))

	fields, ok := RequiredFieldsForSet(schema.SetUtilization)
	require.True(t, ok)
	assert.Contains(t, fields, "bal_limit_curr")
	_, ok = RequiredFieldsForSet(schema.SetPerformance)
	assert.False(t, ok)
}
