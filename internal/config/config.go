package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"tapestrat/internal/convert"
	apperrors "tapestrat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Convert ConvertConfig `yaml:"convert" envconfig:"CONVERT"`
	Strat   StratConfig   `yaml:"strat" envconfig:"STRAT"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ReportsDir  string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// ConvertConfig controls how raw tape cells are coerced
type ConvertConfig struct {
	DateFormat    string   `yaml:"date_format" envconfig:"DATE_FORMAT" validate:"required"`
	DateDelimiter string   `yaml:"date_delimiter" envconfig:"DATE_DELIMITER"`
	PercentScale  float64  `yaml:"percent_scale" envconfig:"PERCENT_SCALE" validate:"gt=0"`
	BpsScale      float64  `yaml:"bps_scale" envconfig:"BPS_SCALE" validate:"gt=0"`
	MissingTokens []string `yaml:"missing_tokens" envconfig:"MISSING_TOKENS"`
}

// StratConfig controls bucketization and aggregation
type StratConfig struct {
	MaxBuckets     int    `yaml:"max_buckets" envconfig:"MAX_BUCKETS" validate:"gt=0"`
	RoundPrecision int    `yaml:"round_precision" envconfig:"ROUND_PRECISION" validate:"gt=0"`
	ZeroPolicy     string `yaml:"zero_policy" envconfig:"ZERO_POLICY" validate:"oneof=0 na"`
	TopStates      int    `yaml:"top_states" envconfig:"TOP_STATES" validate:"gte=0"`
	ProductField   string `yaml:"product_field" envconfig:"PRODUCT_FIELD" validate:"required"`
	IDField        string `yaml:"id_field" envconfig:"ID_FIELD" validate:"required"`
	Workers        int    `yaml:"workers" envconfig:"WORKERS" validate:"gt=0"`
}

// ExportConfig controls report output
type ExportConfig struct {
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=csv xlsx json"`
	BOM    bool   `yaml:"bom" envconfig:"BOM"`
}

// Load builds the configuration from defaults, an optional YAML file and
// TAPESTRAT_* environment variables, in increasing order of precedence.
// An empty path searches the usual locations; a missing file is not an error
// unless the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil && (explicit || !os.IsNotExist(err)) {
			return nil, apperrors.NewConfigError("failed to load config file", err).
				WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))
	c.Strat.ZeroPolicy = strings.ToLower(strings.TrimSpace(c.Strat.ZeroPolicy))
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, DefaultLogFileName)
	}
}

var configValidator = validator.New()

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewConfigError(
				fmt.Sprintf("invalid value %v for %s (%s=%s)", fe.Value(), fe.Namespace(), fe.Tag(), fe.Param()),
				err,
			).WithContext("field", fe.Namespace())
		}
		return apperrors.NewConfigError("config validation failed", err)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"tapestrat.yaml",
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: filepath.Join("data", "reports"),
			LogsDir:    "logs",
		},
		Convert: ConvertConfig{
			DateFormat:   "%Y-%m-%d",
			PercentScale: 1,
			BpsScale:     1,
		},
		Strat: StratConfig{
			MaxBuckets:     DefaultMaxBuckets,
			RoundPrecision: DefaultRoundPrecision,
			ZeroPolicy:     ZeroPolicyZero,
			TopStates:      DefaultTopStates,
			ProductField:   DefaultProductField,
			IDField:        DefaultIDField,
			Workers:        DefaultWorkers,
		},
		Export: ExportConfig{
			Format: FormatCSV,
		},
	}
}

// Policy translates the convert section into a conversion policy.
func (c ConvertConfig) Policy() convert.Policy {
	p := convert.DefaultPolicy()
	if c.DateFormat != "" {
		p.DateFormat = c.DateFormat
	}
	p.DateDelimiter = c.DateDelimiter
	if c.PercentScale > 0 {
		p.PercentScale = c.PercentScale
	}
	if c.BpsScale > 0 {
		p.BpsScale = c.BpsScale
	}
	p.MissingTokens = append([]string(nil), c.MissingTokens...)
	return p
}

// MetricsPath returns where pipeline metrics are dumped, or "" when disabled.
func (c *Config) MetricsPath() string {
	return c.Paths.MetricsFile
}
