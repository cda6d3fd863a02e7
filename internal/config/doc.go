// Package config loads the tapestrat runtime configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default() values
//	2. A YAML file (explicit --config path, or tapestrat.yaml / config.yaml /
//	   configs/config.yaml in the working directory)
//	3. Environment variables prefixed TAPESTRAT_
//
// # Environment Variables
//
// Nested sections map to underscore-joined names:
//
//	TAPESTRAT_LOGGING_LEVEL=debug
//	TAPESTRAT_CONVERT_DATE_FORMAT=%m/%d/%Y
//	TAPESTRAT_CONVERT_MISSING_TOKENS=-,#N/A
//	TAPESTRAT_STRAT_MAX_BUCKETS=8
//	TAPESTRAT_STRAT_ZERO_POLICY=na
//	TAPESTRAT_EXPORT_FORMAT=xlsx
//
// # Example File
//
//	logging:
//	  level: info
//	  format: json
//	  output: stderr
//	paths:
//	  data_dir: data
//	  reports_dir: data/reports
//	  logs_dir: logs
//	  metrics_file: logs/tapestrat.prom
//	convert:
//	  date_format: "%Y-%m-%d"
//	  percent_scale: 1
//	  bps_scale: 1
//	strat:
//	  max_buckets: 10
//	  round_precision: 2
//	  zero_policy: "0"
//	  top_states: 2
//	export:
//	  format: csv
//
// # Validation
//
// Load validates the merged result with struct tags and returns a CONFIG
// AppError naming the first offending field. The convert section is turned
// into a conversion policy with ConvertConfig.Policy.
package config
