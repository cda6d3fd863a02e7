package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tapestrat/internal/config"
	"tapestrat/internal/infrastructure"
	"tapestrat/internal/schema"
	"tapestrat/internal/strat"
	"tapestrat/internal/tape"
	"tapestrat/internal/validation"
)

const shutdownTimeout = 5 * time.Second

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	baseDir     string
	logLevel    string
	metricsFile string
	trace       bool
}

// app holds the per-invocation state built by the root command's
// PersistentPreRunE.
type app struct {
	flags globalFlags

	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
	files     *validation.FileValidator
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.flags.logLevel)
	}
	if a.flags.metricsFile != "" {
		cfg.Paths.MetricsFile = a.flags.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths, err := cfg.ResolvePaths(a.flags.baseDir)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath(filepath.Base(cfg.Logging.FilePath))
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}

	telCfg := infrastructure.DefaultTelemetryConfig()
	telCfg.EnableMetrics = paths.MetricsFile != ""
	telCfg.EnableTracing = a.flags.trace
	telCfg.TraceWriter = cmd.ErrOrStderr()
	telemetry, err := infrastructure.InitializeTelemetry(telCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a.cfg = cfg
	a.paths = paths
	a.logger = infrastructure.WithComponent(logger, "cli").With(slog.String("command", cmd.CommandPath()))
	a.telemetry = telemetry
	a.files = validation.NewFileValidator(logger)

	cmd.SetContext(infrastructure.EnsureTraceID(cmd.Context()))
	a.logger.Debug("configuration loaded",
		slog.String("reports_dir", paths.ReportsDir),
		slog.String("metrics_file", paths.MetricsFile),
		slog.Bool("tracing", a.flags.trace))
	return nil
}

// run wraps a command body so teardown happens whether or not it fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if terr := a.teardown(); err == nil {
			err = terr
		}
		return err
	}
}

// teardown dumps metrics and flushes telemetry.
func (a *app) teardown() error {
	if a.telemetry == nil {
		return nil
	}
	var firstErr error
	if err := a.telemetry.WriteMetricsFile(a.paths.MetricsFile); err != nil {
		a.logger.Error("failed to write metrics file", slog.String("error", err.Error()))
		firstErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.telemetry = nil
	return firstErr
}

func (a *app) loadSchema(path string) (*schema.Schema, error) {
	if err := a.files.ValidateSchemaFile(path); err != nil {
		return nil, err
	}
	return schema.NewLoader(a.cfg.Convert.Policy(), a.logger).
		WithMetrics(a.telemetry.Metrics).
		Load(path)
}

// tapeFlags select and read a loan tape.
type tapeFlags struct {
	schemaPath string
	headerMap  string
	sheet      string
}

func (f *tapeFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.schemaPath, "schema", "s", "", "field schema CSV (required)")
	fs.StringVar(&f.headerMap, "header-map", "", "YAML or CSV file renaming tape columns to schema fields")
	fs.StringVar(&f.sheet, "sheet", "", "worksheet to read from an .xlsx tape (default first sheet)")
	_ = cobra.MarkFlagRequired(fs, "schema")
}

func (a *app) loadTape(ctx context.Context, path string, f tapeFlags) (*tape.RecordSet, error) {
	if _, err := a.files.ValidateTapeFile(path); err != nil {
		return nil, err
	}
	s, err := a.loadSchema(f.schemaPath)
	if err != nil {
		return nil, err
	}

	var headerMap map[string]string
	if f.headerMap != "" {
		if err := a.files.ValidateHeaderMapFile(f.headerMap); err != nil {
			return nil, err
		}
		if headerMap, err = tape.LoadHeaderMap(f.headerMap); err != nil {
			return nil, err
		}
	}

	loader := tape.NewLoader(s, tape.Options{
		IDField:   a.cfg.Strat.IDField,
		Sheet:     f.sheet,
		HeaderMap: headerMap,
		Workers:   a.cfg.Strat.Workers,
		Logger:    a.logger,
		Metrics:   a.telemetry.Metrics,
	})
	return loader.LoadFile(ctx, path)
}

// stratOptions translates the strat config section. A configured top state
// count of zero turns the state columns off.
func (a *app) stratOptions() (strat.Options, error) {
	zero, err := strat.ParseZeroPolicy(a.cfg.Strat.ZeroPolicy)
	if err != nil {
		return strat.Options{}, err
	}
	topStates := a.cfg.Strat.TopStates
	if topStates == 0 {
		topStates = -1
	}
	return strat.Options{
		MaxBuckets:     a.cfg.Strat.MaxBuckets,
		RoundPrecision: a.cfg.Strat.RoundPrecision,
		Zero:           zero,
		TopStates:      topStates,
		ProductField:   a.cfg.Strat.ProductField,
		Logger:         a.logger,
		Metrics:        a.telemetry.Metrics,
	}, nil
}

// exportFormat returns the flag value when set, else the configured format.
func (a *app) exportFormat(flag string) (string, error) {
	format := a.cfg.Export.Format
	if flag != "" {
		format = flag
	}
	switch format {
	case config.FormatCSV, config.FormatXLSX, config.FormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want csv, xlsx or json)", format)
	}
}

// outputPath resolves an output file flag. Empty means name in the reports
// directory; relative paths are taken from the working directory. The
// parent directory is created and checked for writability.
func (a *app) outputPath(flag, name string) (string, error) {
	path := flag
	if path == "" {
		path = a.paths.GetReportPath(name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path %s: %w", path, err)
	}
	if err := a.files.ValidateOutputDirectory(filepath.Dir(abs)); err != nil {
		return "", err
	}
	return abs, nil
}
