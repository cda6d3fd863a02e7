package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tapestrat/internal/config"
	"tapestrat/internal/exporter"
	"tapestrat/internal/schema"
	"tapestrat/internal/strat"
)

// setFlag parses an optional --set value. Empty keeps the asset class
// default.
func setFlag(value string) (schema.SummarySet, error) {
	if value == "" {
		return "", nil
	}
	set, ok := schema.ParseSummarySet(value)
	if !ok {
		return "", fmt.Errorf("unknown summary set %q", value)
	}
	return set, nil
}

func newStratCmd(a *app) *cobra.Command {
	var (
		tf         tapeFlags
		assetClass string
		field      string
		set        string
		edges      []float64
		buckets    int
		out        string
		format     string
		show       bool
	)

	cmd := &cobra.Command{
		Use:   "strat <tape>",
		Short: "Stratify one asset class by one variable",
		Long: `Bucket the loans of one product class by a variable and aggregate every
bucket with the summary set columns of that class: counts, balances and
balance-weighted averages, plus overflow, missing and Total rows.

Numeric buckets come from the variable's preset when one matches its name,
otherwise from a rounded even split of its range. --edges replaces both.

Examples:
  tapestrat strat tape.csv -s fields.csv --asset-class consumer_mortgage --field fico_orig
  tapestrat strat tape.csv -s fields.csv --field bal_curr --set none --edges 100000,250000,500000
  tapestrat strat tape.csv -s fields.csv --asset-class consumer_auto --field date_orig --format json --out -`,
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
			opts.Edges = edges
			if buckets > 0 {
				opts.MaxBuckets = buckets
			}

			rs, err := a.loadTape(cmd.Context(), args[0], tf)
			if err != nil {
				return err
			}

			table, err := strat.Stratify(cmd.Context(), rs, assetClass, field, opts)
			if err != nil {
				return err
			}
			for _, note := range table.Notes {
				a.logger.Warn("stratification note", slog.String("note", note))
			}

			if out == stdoutPath {
				if fmtName != config.FormatJSON {
					return printTable(cmd, table)
				}
				return exporter.EncodeJSON(cmd.OutOrStdout(), table)
			}
			if show {
				if err := printTable(cmd, table); err != nil {
					return err
				}
			}
			if out, err = a.outputPath(out, exporter.TableFileName(table, "."+fmtName)); err != nil {
				return err
			}

			switch fmtName {
			case config.FormatJSON:
				err = exporter.WriteJSON(out, table)
			case config.FormatXLSX:
				pkg := &strat.Package{
					RunID:     uuid.New().String(),
					CreatedAt: time.Now().UTC(),
					Records:   rs.Len(),
					Tables:    []*strat.Table{table},
				}
				err = exporter.NewWorkbookWriter(a.logger).WritePackage(out, pkg)
			default:
				err = exporter.NewCSVWriter(a.paths, a.logger).WriteTable(out, table, a.cfg.Export.BOM)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "stratified %s by %s: %d buckets -> %s\n",
				displayClass(table.AssetClass), table.Field, len(table.Rows), out)
			return nil
		}),
	}

	tf.register(cmd.Flags())
	flags := cmd.Flags()
	flags.StringVar(&assetClass, "asset-class", "", "product class to stratify (default whole tape)")
	flags.StringVar(&field, "field", "", "variable to bucket by (required)")
	flags.StringVar(&set, "set", "", "summary set override: none, summary, servicing or utilization")
	flags.IntVar(&buckets, "buckets", 0, "maximum number of computed numeric buckets (default from config)")
	flags.Float64SliceVar(&edges, "edges", nil, "explicit ascending bucket upper bounds")
	flags.StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default <reports>/<class>_<field>.<format>)`)
	flags.StringVarP(&format, "format", "f", "", "csv, xlsx or json (default from config)")
	flags.BoolVar(&show, "print", false, "also print the table to stdout")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

func displayClass(class string) string {
	if class == "" {
		return "tape"
	}
	return class
}

// printTable renders a table with aligned columns.
func printTable(cmd *cobra.Command, t *strat.Table) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, strings.Join(t.Header(), "\t")+"\t")
	for _, rec := range t.Records() {
		fmt.Fprintln(w, strings.Join(rec, "\t")+"\t")
	}
	return w.Flush()
}
