package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Coverage CoverageConfig `yaml:"coverage" mapstructure:"coverage"`
	Springer SpringerConfig `yaml:"springer" mapstructure:"springer"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Cubes    CubesConfig    `yaml:"cubes" mapstructure:"cubes"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CoverageConfig configures the coverage collector and its cache files.
type CoverageConfig struct {
	Publisher         string `yaml:"publisher" mapstructure:"publisher"`
	CoverageCacheFile string `yaml:"coverage_cache_file" mapstructure:"coverage_cache_file"`
	PubDatesCacheFile string `yaml:"pubdates_cache_file" mapstructure:"pubdates_cache_file"`
	JournalCSVDir     string `yaml:"journal_csv_dir" mapstructure:"journal_csv_dir"`
	// MaxLookups caps network lookups per run. Negative means unlimited.
	MaxLookups   int    `yaml:"max_lookups" mapstructure:"max_lookups"`
	ErrorLogFile string `yaml:"error_log_file" mapstructure:"error_log_file"`
}

// SpringerConfig holds SpringerLink endpoints.
type SpringerConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	DOIResolverURL string `yaml:"doi_resolver_url" mapstructure:"doi_resolver_url"`
	CSVStartYear   int    `yaml:"csv_start_year" mapstructure:"csv_start_year"`
}

// HTTPConfig configures outbound requests.
type HTTPConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RetryConfig configures retries of stats lookups.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CubesConfig configures the table and asset generator.
type CubesConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	// Schema is the postgres schema for the cube tables. Empty uses the
	// search path.
	Schema           string `yaml:"schema" mapstructure:"schema"`
	InstitutionsFile string `yaml:"institutions_file" mapstructure:"institutions_file"`
	TemplatesDir     string `yaml:"templates_dir" mapstructure:"templates_dir"`
	OutputDir        string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPENAPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("coverage.publisher", "Springer Nature")
	v.SetDefault("coverage.coverage_cache_file", "coverage_stats.json")
	v.SetDefault("coverage.pubdates_cache_file", "article_pubdates.json")
	v.SetDefault("coverage.journal_csv_dir", "coverage_article_files")
	v.SetDefault("coverage.max_lookups", -1)
	v.SetDefault("coverage.error_log_file", "")
	v.SetDefault("springer.base_url", "https://link.springer.com")
	v.SetDefault("springer.doi_resolver_url", "https://doi.org")
	v.SetDefault("springer.csv_start_year", 2015)
	v.SetDefault("http.user_agent", "openapc-cli/1.0")
	v.SetDefault("http.timeout_secs", 60)
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("cubes.driver", "sqlite")
	v.SetDefault("cubes.database_url", "cubes.sqlite")
	v.SetDefault("cubes.schema", "")
	v.SetDefault("cubes.institutions_file", "static/institutions.csv")
	v.SetDefault("cubes.templates_dir", "static/templates")
	v.SetDefault("cubes.output_dir", ".")

	// Read config file (optional)
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

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.DisableStacktrace = true
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

// Validate checks that the settings required by the given command are
// present. All problems are reported together.
func (c *Config) Validate(command string) error {
	var missing []string

	switch command {
	case "coverage":
		if c.Coverage.Publisher == "" {
			missing = append(missing, "coverage.publisher is required")
		}
		if c.Coverage.CoverageCacheFile == "" {
			missing = append(missing, "coverage.coverage_cache_file is required")
		}
		if c.Coverage.PubDatesCacheFile == "" {
			missing = append(missing, "coverage.pubdates_cache_file is required")
		}
		if c.Coverage.JournalCSVDir == "" {
			missing = append(missing, "coverage.journal_csv_dir is required")
		}
		if c.Springer.BaseURL == "" {
			missing = append(missing, "springer.base_url is required")
		}
		if c.Springer.DOIResolverURL == "" {
			missing = append(missing, "springer.doi_resolver_url is required")
		}
		if c.Retry.MaxAttempts < 1 {
			missing = append(missing, "retry.max_attempts must be at least 1")
		}
	case "cubes":
		if c.Cubes.Driver != "sqlite" && c.Cubes.Driver != "postgres" {
			missing = append(missing, "cubes.driver must be sqlite or postgres")
		}
		if c.Cubes.DatabaseURL == "" {
			missing = append(missing, "cubes.database_url is required")
		}
		if c.Cubes.InstitutionsFile == "" {
			missing = append(missing, "cubes.institutions_file is required")
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}
