package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Engine names accepted by cohort.engine.
const (
	EngineNative = "native"
	EngineSQLite = "sqlite"
)

// Config holds the full application configuration.
type Config struct {
	Input  InputConfig  `yaml:"input" mapstructure:"input"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Cohort CohortConfig `yaml:"cohort" mapstructure:"cohort"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// InputConfig locates and describes the transaction log.
type InputConfig struct {
	Path        string        `yaml:"path" mapstructure:"path"`
	Format      string        `yaml:"format" mapstructure:"format"` // csv, xlsx, zip; empty = by extension
	Encoding    string        `yaml:"encoding" mapstructure:"encoding"`
	Delimiter   string        `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet       string        `yaml:"sheet" mapstructure:"sheet"`
	Table       string        `yaml:"table" mapstructure:"table"` // postgres source table
	Columns     ColumnsConfig `yaml:"columns" mapstructure:"columns"`
	NullValues  []string      `yaml:"null_values" mapstructure:"null_values"`
	DateLayouts []string      `yaml:"date_layouts" mapstructure:"date_layouts"`
}

// ColumnsConfig maps the required fields to source column names.
type ColumnsConfig struct {
	CustomerID  string `yaml:"customer_id" mapstructure:"customer_id"`
	Invoice     string `yaml:"invoice" mapstructure:"invoice"`
	InvoiceDate string `yaml:"invoice_date" mapstructure:"invoice_date"`
}

// OutputConfig configures the retention table artifact.
type OutputConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"` // csv, xlsx; empty = by extension
	Sheet  string `yaml:"sheet" mapstructure:"sheet"`
}

// CohortConfig configures the retention computation.
type CohortConfig struct {
	Engine       string `yaml:"engine" mapstructure:"engine"`
	CancelPrefix string `yaml:"cancel_prefix" mapstructure:"cancel_prefix"`
	MaxMonth     int    `yaml:"max_month" mapstructure:"max_month"`
}

// FetchConfig configures remote input downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultDateLayouts are tried in order when parsing InvoiceDate values.
var DefaultDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
}

// Load reads configuration from file and environment. An empty file uses
// ./config.yaml when present.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COHORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input.path", "raw_retail_data.csv")
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.table", "transactions")
	v.SetDefault("input.columns.customer_id", "Customer ID")
	v.SetDefault("input.columns.invoice", "Invoice")
	v.SetDefault("input.columns.invoice_date", "InvoiceDate")
	v.SetDefault("input.null_values", []string{""})
	v.SetDefault("input.date_layouts", DefaultDateLayouts)
	v.SetDefault("output.path", "tableau_ready_cohorts.csv")
	v.SetDefault("output.sheet", "cohorts")
	v.SetDefault("cohort.engine", EngineNative)
	v.SetDefault("cohort.cancel_prefix", "C")
	v.SetDefault("cohort.max_month", 12)
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.user_agent", "cohort-cli/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	var problems []string

	switch c.Cohort.Engine {
	case EngineNative, EngineSQLite:
	default:
		problems = append(problems, "cohort.engine must be native or sqlite, got "+quote(c.Cohort.Engine))
	}
	if c.Cohort.CancelPrefix == "" {
		problems = append(problems, "cohort.cancel_prefix is empty")
	}
	if c.Cohort.MaxMonth < 0 {
		problems = append(problems, "cohort.max_month is negative")
	}
	if c.Input.Path == "" {
		problems = append(problems, "input.path is empty")
	}
	if c.Output.Path == "" {
		problems = append(problems, "output.path is empty")
	}
	if c.Input.Columns.CustomerID == "" || c.Input.Columns.Invoice == "" || c.Input.Columns.InvoiceDate == "" {
		problems = append(problems, "input.columns must name customer_id, invoice and invoice_date")
	}
	if len([]rune(c.Input.Delimiter)) > 1 {
		problems = append(problems, "input.delimiter must be a single character, got "+quote(c.Input.Delimiter))
	}
	if len(c.Input.DateLayouts) == 0 {
		problems = append(problems, "input.date_layouts is empty")
	}
	if c.Fetch.MaxRetries < 0 {
		problems = append(problems, "fetch.max_retries is negative")
	}
	if c.Fetch.RatePerSec <= 0 {
		problems = append(problems, "fetch.rate_per_sec must be positive")
	}
	if c.Fetch.TimeoutSecs < 0 {
		problems = append(problems, "fetch.timeout_secs is negative")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
