package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"tapestrat/internal/config"
)

const (
	ServiceName = config.AppName
	MeterName   = "tapestrat"
)

// TelemetryConfig selects which OpenTelemetry signals a run produces.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EnableMetrics  bool
	EnableTracing  bool
	// TraceWriter receives finished spans as JSON. Nil means stderr.
	TraceWriter io.Writer
}

// Telemetry bundles the providers and pipeline instruments for one process.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prometheus.Registry
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *PipelineMetrics
	Logger         *slog.Logger
}

// DefaultTelemetryConfig enables metrics and leaves tracing off.
func DefaultTelemetryConfig() TelemetryConfig {
	env := os.Getenv("TAPESTRAT_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return TelemetryConfig{
		ServiceName:    ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		EnableMetrics:  true,
	}
}

// InitializeTelemetry wires the meter provider to a private Prometheus
// registry and, when enabled, a synchronous stdout span exporter. The
// providers are installed as the otel globals.
func InitializeTelemetry(cfg TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceName
	}

	res := createResource(cfg)
	t := &Telemetry{Logger: logger}

	if cfg.EnableTracing {
		w := cfg.TraceWriter
		if w == nil {
			w = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(t.TracerProvider)
	}
	t.Tracer = otel.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	if cfg.EnableMetrics {
		t.Registry = prometheus.NewRegistry()
		exporter, err := otelprom.New(
			otelprom.WithRegisterer(t.Registry),
			otelprom.WithoutTargetInfo(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(t.MeterProvider)
		t.Meter = t.MeterProvider.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	} else {
		t.Meter = noop.NewMeterProvider().Meter(MeterName)
	}

	metrics, err := NewPipelineMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Metrics = metrics

	logger.Debug("telemetry initialized",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return t, nil
}

func createResource(cfg TelemetryConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

// WriteMetricsFile dumps the current metric values in the Prometheus text
// format. It is a no-op when metrics are disabled or path is empty.
func (t *Telemetry) WriteMetricsFile(path string) error {
	if t == nil || t.Registry == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// PipelineMetrics holds the counters recorded while loading and stratifying.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	SchemaLoads    metric.Int64Counter
	RowsLoaded     metric.Int64Counter
	CellsConverted metric.Int64Counter
	TablesBuilt    metric.Int64Counter
	TableFailures  metric.Int64Counter
	NoValidData    metric.Int64Counter
	StratDuration  metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	schemaLoads, err := meter.Int64Counter(
		"schema_loads",
		metric.WithDescription("Schema load attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	rowsLoaded, err := meter.Int64Counter(
		"tape_rows_loaded",
		metric.WithDescription("Loan rows read from tape files"),
	)
	if err != nil {
		return nil, err
	}

	cellsConverted, err := meter.Int64Counter(
		"cells_converted",
		metric.WithDescription("Tape cells coerced by data category and outcome"),
	)
	if err != nil {
		return nil, err
	}

	tablesBuilt, err := meter.Int64Counter(
		"strat_tables_built",
		metric.WithDescription("Stratification tables produced"),
	)
	if err != nil {
		return nil, err
	}

	tableFailures, err := meter.Int64Counter(
		"strat_table_failures",
		metric.WithDescription("Stratification tables that could not be produced"),
	)
	if err != nil {
		return nil, err
	}

	noValidData, err := meter.Int64Counter(
		"no_valid_data",
		metric.WithDescription("Statistics that had no valid input values"),
	)
	if err != nil {
		return nil, err
	}

	stratDuration, err := meter.Float64Histogram(
		"strat_duration_seconds",
		metric.WithDescription("Time spent building one stratification table"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		SchemaLoads:    schemaLoads,
		RowsLoaded:     rowsLoaded,
		CellsConverted: cellsConverted,
		TablesBuilt:    tablesBuilt,
		TableFailures:  tableFailures,
		NoValidData:    noValidData,
		StratDuration:  stratDuration,
	}, nil
}

// RecordSchemaLoad counts one schema load attempt.
func (m *PipelineMetrics) RecordSchemaLoad(ctx context.Context, loaded bool) {
	if m == nil {
		return
	}
	result := "loaded"
	if !loaded {
		result = "rejected"
	}
	m.SchemaLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordRows counts rows read from a tape in the given file format.
func (m *PipelineMetrics) RecordRows(ctx context.Context, format string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RowsLoaded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("format", format)))
}

// RecordCells counts converted cells of one data category by outcome.
func (m *PipelineMetrics) RecordCells(ctx context.Context, category string, valid, missing, invalid int64) {
	if m == nil {
		return
	}
	for outcome, n := range map[string]int64{"valid": valid, "missing": missing, "invalid": invalid} {
		if n == 0 {
			continue
		}
		m.CellsConverted.Add(ctx, n, metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordTable counts one finished stratification table.
func (m *PipelineMetrics) RecordTable(ctx context.Context, assetClass, summarySet string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("asset_class", assetClass),
		attribute.String("summary_set", summarySet),
	)
	m.TablesBuilt.Add(ctx, 1, attrs)
	m.StratDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTableFailure counts a table that ended in an error.
func (m *PipelineMetrics) RecordTableFailure(ctx context.Context, assetClass string, err error) {
	if m == nil {
		return
	}
	m.TableFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset_class", assetClass),
		attribute.String("error.type", fmt.Sprintf("%T", err)),
	))
}

// RecordNoValidData counts a statistic that came back NoValidData.
func (m *PipelineMetrics) RecordNoValidData(ctx context.Context, statistic string) {
	if m == nil {
		return
	}
	m.NoValidData.Add(ctx, 1, metric.WithAttributes(attribute.String("statistic", statistic)))
}

// StartSpan starts a span on the global tracer. With tracing disabled the
// span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(MeterName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
