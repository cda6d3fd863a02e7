package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestInitializeTelemetry(t *testing.T) {
	var traces bytes.Buffer
	cfg := DefaultTelemetryConfig()
	cfg.EnableTracing = true
	cfg.TraceWriter = &traces

	tel, err := InitializeTelemetry(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, tel.Metrics)
	require.NotNil(t, tel.Registry)

	ctx, span := StartSpan(context.Background(), "stratify", attribute.String("field", "fico_orig"))
	RecordError(ctx, errors.New("no data"))
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Contains(t, traces.String(), `"Name":"stratify"`)
	assert.Contains(t, traces.String(), "fico_orig")
}

func TestWriteMetricsFile(t *testing.T) {
	tel, err := InitializeTelemetry(DefaultTelemetryConfig(), nil)
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	ctx := context.Background()
	tel.Metrics.RecordSchemaLoad(ctx, true)
	tel.Metrics.RecordRows(ctx, "csv", 12)
	tel.Metrics.RecordCells(ctx, "floats", 10, 2, 1)
	tel.Metrics.RecordTable(ctx, "consumer_mortgage", "summary", 15*time.Millisecond)
	tel.Metrics.RecordTableFailure(ctx, "consumer_auto", errors.New("missing"))
	tel.Metrics.RecordNoValidData(ctx, "wa_origfico")

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, tel.WriteMetricsFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	for _, name := range []string{
		"schema_loads_total",
		"tape_rows_loaded_total",
		"cells_converted_total",
		"strat_tables_built_total",
		"strat_table_failures_total",
		"no_valid_data_total",
		"strat_duration_seconds",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, `outcome="invalid"`)
	assert.Contains(t, out, `category="floats"`)
}

func TestTelemetryDisabled(t *testing.T) {
	tel, err := InitializeTelemetry(TelemetryConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, tel.Registry)
	assert.NoError(t, tel.WriteMetricsFile(filepath.Join(t.TempDir(), "x.prom")))
	assert.NoError(t, tel.Shutdown(context.Background()))

	var nilTel *Telemetry
	assert.NoError(t, nilTel.WriteMetricsFile("ignored"))
	assert.NoError(t, nilTel.Shutdown(context.Background()))
}

func TestNilPipelineMetrics(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordSchemaLoad(ctx, false)
		m.RecordRows(ctx, "xlsx", 3)
		m.RecordCells(ctx, "ints", 1, 1, 1)
		m.RecordTable(ctx, "x", "none", time.Second)
		m.RecordTableFailure(ctx, "x", errors.New("e"))
		m.RecordNoValidData(ctx, "wa")
	})
}

func TestNewPipelineMetricsNoop(t *testing.T) {
	m, err := NewPipelineMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	assert.NotPanics(t, func() { m.RecordCells(context.Background(), "dates", 1, 0, 0) })
}
