package config

// Application constants
const (
	AppName    = "tapestrat"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment override, e.g. TAPESTRAT_STRAT_MAX_BUCKETS.
	EnvPrefix = "TAPESTRAT"

	// Default file names written under the configured directories
	DefaultLogFileName     = "tapestrat.log"
	DefaultMetricsFileName = "tapestrat.prom"

	// Stratification defaults
	DefaultMaxBuckets     = 10
	DefaultRoundPrecision = 2
	DefaultTopStates      = 2
	DefaultWorkers        = 4
	DefaultProductField   = "productdesc"
	DefaultIDField        = "loanid"

	// Zero policies for weighted averages
	ZeroPolicyZero = "0"
	ZeroPolicyNA   = "na"

	// Export formats
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)
