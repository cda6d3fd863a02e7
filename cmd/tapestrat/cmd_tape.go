package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tapestrat/internal/config"
	"tapestrat/internal/exporter"
	"tapestrat/internal/tape"
)

const stdoutPath = "-"

func newTapeCmd(a *app) *cobra.Command {
	tapeCmd := &cobra.Command{
		Use:   "tape",
		Short: "Load and inspect loan tapes",
	}

	var (
		tf          tapeFlags
		out         string
		format      string
		profileOpts tape.ProfileOptions
	)
	profileCmd := &cobra.Command{
		Use:   "profile <tape>",
		Short: "Convert a tape and profile every column",
		Long: `Load a .csv, .tsv/.txt or .xlsx tape, convert each column with its schema
converter and write per-column statistics: counts of missing and invalid
cells, five-number summaries of numeric columns and distinct values of
categorical ones. Categorical values are listed most frequent first, up to
--max-values of them; columns with more than --max-cardinality distinct
values (identifiers, free text) list none.

Examples:
  tapestrat tape profile tape.csv --schema fields.csv
  tapestrat tape profile tape.xlsx -s fields.csv --sheet Loans --format json --out -`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			fmtName, err := a.exportFormat(format)
			if err != nil {
				return err
			}
			if fmtName == config.FormatXLSX {
				return fmt.Errorf("profiles are written as csv or json, not %s", fmtName)
			}

			rs, err := a.loadTape(cmd.Context(), args[0], tf)
			if err != nil {
				return err
			}
			profile := tape.BuildProfileWithOptions(rs, profileOpts)

			if out == stdoutPath {
				if fmtName == config.FormatJSON {
					return exporter.EncodeJSON(cmd.OutOrStdout(), profile)
				}
				return printProfile(cmd, profile)
			}
			if out, err = a.outputPath(out, "profile."+fmtName); err != nil {
				return err
			}

			if fmtName == config.FormatJSON {
				err = exporter.WriteJSON(out, profile)
			} else {
				err = exporter.NewCSVWriter(a.paths, a.logger).WriteProfile(out, profile, a.cfg.Export.BOM)
			}
			if err != nil {
				return err
			}

			a.logger.Info("tape profiled",
				slog.String("tape", args[0]),
				slog.Int("records", profile.Records),
				slog.Int("columns", len(profile.Columns)),
				slog.String("output", out))
			fmt.Fprintf(cmd.OutOrStdout(), "profiled %d records, %d columns -> %s\n",
				profile.Records, len(profile.Columns), out)
			return nil
		}),
	}
	tf.register(profileCmd.Flags())
	profileCmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default <reports>/profile.<format>)`)
	profileCmd.Flags().StringVarP(&format, "format", "f", "", "csv or json (default from config)")
	profileCmd.Flags().IntVar(&profileOpts.MaxUniqueValues, "max-values", tape.DefaultMaxUniqueValues,
		"most frequent values listed per categorical column")
	profileCmd.Flags().IntVar(&profileOpts.MaxUniqueCardinality, "max-cardinality", tape.DefaultMaxUniqueCardinality,
		"distinct count above which a column lists no values")

	tapeCmd.AddCommand(profileCmd)
	return tapeCmd
}

func printProfile(cmd *cobra.Command, p tape.Profile) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write(exporter.ProfileHeaders()); err != nil {
		return err
	}
	return w.WriteAll(exporter.ProfileRecords(p))
}
