package main

import (
	"github.com/spf13/cobra"

	"tapestrat/internal/config"
)

// newRootCmd builds the command tree. Each call gets fresh flag state so
// tests can execute it repeatedly.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tapestrat",
		Short: "Loan tape validation and stratification",
		Long: `tapestrat reads a loan tape against a field schema, coerces every cell to
its declared type and produces stratification tables: loans bucketed by one
variable with counts, balances and weighted averages per bucket.

Configuration comes from tapestrat.yaml (or --config) and TAPESTRAT_*
environment variables. Logs go to stderr; reports go to the reports directory.`,
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "config file (default tapestrat.yaml, config.yaml or configs/config.yaml)")
	pf.StringVar(&a.flags.baseDir, "base-dir", "", "directory relative config paths are resolved against (default working directory)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level override: debug, info, warn or error")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write pipeline metrics in Prometheus text format to this file")
	pf.BoolVar(&a.flags.trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(
		newSchemaCmd(a),
		newTapeCmd(a),
		newStratCmd(a),
		newPackageCmd(a),
	)
	return root
}
