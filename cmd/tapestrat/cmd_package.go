package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"tapestrat/internal/config"
	"tapestrat/internal/exporter"
	"tapestrat/internal/strat"
)

const packageBaseName = "strat_package"

func newPackageCmd(a *app) *cobra.Command {
	var (
		tf      tapeFlags
		classes []string
		fields  []string
		set     string
		outDir  string
		format  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "package <tape>",
		Short: "Stratify every asset class by every stratify-by field",
		Long: `Build a full stratification package: one table per product class on the
tape and per schema field flagged for stratification. Tables are built
concurrently; a table that fails is listed with its error and does not stop
the run.

csv writes one file per table plus failures.csv, xlsx writes one workbook
with a summary sheet, json writes the whole package as one document.

Examples:
  tapestrat package tape.csv -s fields.csv
  tapestrat package tape.csv -s fields.csv --asset-classes consumer_auto,consumer_card --format xlsx
  tapestrat package tape.csv -s fields.csv --fields fico_orig,state --out-dir reports/2024q4`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			fmtName, err := a.exportFormat(format)
			if err != nil {
				return err
			}
			opts, err := a.stratOptions()
			if err != nil {
				return err
			}
			if opts.Set, err = setFlag(set); err != nil {
				return err
			}
			if workers <= 0 {
				workers = a.cfg.Strat.Workers
			}

			rs, err := a.loadTape(cmd.Context(), args[0], tf)
			if err != nil {
				return err
			}

			pkg, err := strat.BuildPackage(cmd.Context(), rs, strat.PackageOptions{
				Options:      opts,
				AssetClasses: classes,
				Fields:       fields,
				Workers:      workers,
			})
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = a.paths.ReportsDir
			}
			if outDir, err = filepath.Abs(outDir); err != nil {
				return fmt.Errorf("failed to resolve output directory: %w", err)
			}
			if err := a.files.ValidateOutputDirectory(outDir); err != nil {
				return err
			}

			written, err := writePackage(a, pkg, outDir, fmtName)
			if err != nil {
				return err
			}

			for _, f := range pkg.Failures {
				a.logger.Warn("table failed",
					slog.String("asset_class", f.AssetClass),
					slog.String("field", f.Field),
					slog.String("error", f.Error))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "package %s: %d tables, %d failures, %d files -> %s\n",
				pkg.RunID, len(pkg.Tables), len(pkg.Failures), len(written), outDir)
			if len(pkg.Tables) == 0 {
				return fmt.Errorf("no table could be built (%d failures)", len(pkg.Failures))
			}
			return nil
		}),
	}

	tf.register(cmd.Flags())
	flags := cmd.Flags()
	flags.StringSliceVar(&classes, "asset-classes", nil, "product classes to include (default every class on the tape)")
	flags.StringSliceVar(&fields, "fields", nil, "variables to stratify by (default schema stratify-by fields on the tape)")
	flags.StringVar(&set, "set", "", "summary set override applied to every table")
	flags.StringVar(&outDir, "out-dir", "", "output directory (default reports directory)")
	flags.StringVarP(&format, "format", "f", "", "csv, xlsx or json (default from config)")
	flags.IntVar(&workers, "workers", 0, "concurrent table builds (default from config)")
	return cmd
}

// writePackage exports pkg into dir and returns the files written.
func writePackage(a *app, pkg *strat.Package, dir, format string) ([]string, error) {
	switch format {
	case config.FormatJSON:
		path := filepath.Join(dir, packageBaseName+".json")
		return []string{path}, exporter.WriteJSON(path, pkg)
	case config.FormatXLSX:
		path := filepath.Join(dir, packageBaseName+".xlsx")
		return []string{path}, exporter.NewWorkbookWriter(a.logger).WritePackage(path, pkg)
	}

	w := exporter.NewCSVWriter(a.paths, a.logger)
	files, err := w.WritePackage(dir, pkg, a.cfg.Export.BOM)
	if err != nil {
		return nil, err
	}
	if len(pkg.Failures) > 0 {
		path := filepath.Join(dir, "failures.csv")
		if err := w.WriteSimpleCSV(path, []string{"asset_class", "field", "error"}, exporter.FailureRecords(pkg)); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}
