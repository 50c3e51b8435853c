package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete pipeline configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Tracing  TracingConfig  `yaml:"tracing" envconfig:"TRACING"`
}

// DatabaseConfig contains connection settings for the market-data store.
// URL takes precedence over the individual fields when set.
type DatabaseConfig struct {
	URL            string        `yaml:"url" envconfig:"URL"`
	Host           string        `yaml:"host" envconfig:"HOST" default:"localhost"`
	Port           int           `yaml:"port" envconfig:"PORT" default:"5432"`
	Name           string        `yaml:"name" envconfig:"NAME" default:"housing"`
	User           string        `yaml:"user" envconfig:"USER" default:"postgres"`
	Password       string        `yaml:"password" envconfig:"PASSWORD"`
	SSLMode        string        `yaml:"ssl_mode" envconfig:"SSL_MODE" default:"prefer"`
	MinConns       int32         `yaml:"min_conns" envconfig:"MIN_CONNS" default:"1"`
	MaxConns       int32         `yaml:"max_conns" envconfig:"MAX_CONNS" default:"4"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT" default:"10s"`
	QueryTimeout   time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT" default:"2m"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pipeline.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PipelineConfig contains tunables for the scoring run itself
type PipelineConfig struct {
	UpsertBatchSize int `yaml:"upsert_batch_size" envconfig:"UPSERT_BATCH_SIZE" default:"1000"`
	ReportTopN      int `yaml:"report_top_n" envconfig:"REPORT_TOP_N" default:"10"`
}

// TracingConfig controls the OpenTelemetry trace exporter
type TracingConfig struct {
	Exporter    string  `yaml:"exporter" envconfig:"EXPORTER" default:"none"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0"`
	ServiceName string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"zipyield"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("ZIPYIELD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	configFile := getConfigFilePath()
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence,
// envconfig defaults count as unset for strings that match the default)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Database.URL == "" {
		envConfig.Database.URL = fileConfig.Database.URL
	}
	if fileConfig.Database.Host != "" && os.Getenv("ZIPYIELD_DATABASE_HOST") == "" {
		envConfig.Database.Host = fileConfig.Database.Host
	}
	if fileConfig.Database.Name != "" && os.Getenv("ZIPYIELD_DATABASE_NAME") == "" {
		envConfig.Database.Name = fileConfig.Database.Name
	}
	if fileConfig.Database.User != "" && os.Getenv("ZIPYIELD_DATABASE_USER") == "" {
		envConfig.Database.User = fileConfig.Database.User
	}
	if envConfig.Database.Password == "" {
		envConfig.Database.Password = fileConfig.Database.Password
	}
	if fileConfig.Logging.Level != "" && os.Getenv("ZIPYIELD_LOGGING_LEVEL") == "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Logging.FilePath != "" && os.Getenv("ZIPYIELD_LOGGING_FILE_PATH") == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if fileConfig.Pipeline.UpsertBatchSize != 0 && os.Getenv("ZIPYIELD_PIPELINE_UPSERT_BATCH_SIZE") == "" {
		envConfig.Pipeline.UpsertBatchSize = fileConfig.Pipeline.UpsertBatchSize
	}
	if fileConfig.Tracing.Exporter != "" && os.Getenv("ZIPYIELD_TRACING_EXPORTER") == "" {
		envConfig.Tracing.Exporter = fileConfig.Tracing.Exporter
	}

	return envConfig
}

// DSN returns the PostgreSQL connection string for the configured database.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host must be set when no database URL is given")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name must be set when no database URL is given")
		}
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("database max_conns (%d) must be >= min_conns (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Pipeline.UpsertBatchSize <= 0 {
		return fmt.Errorf("pipeline upsert batch size must be positive, got %d", c.Pipeline.UpsertBatchSize)
	}
	if c.Pipeline.UpsertBatchSize > 10000 {
		return fmt.Errorf("pipeline upsert batch size too large: %d", c.Pipeline.UpsertBatchSize)
	}
	if c.Pipeline.ReportTopN < 0 {
		return fmt.Errorf("pipeline report top-n must not be negative, got %d", c.Pipeline.ReportTopN)
	}

	// JSON is the only structured format the log pipeline understands
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "stderr", "file", "both":
	default:
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/pipeline.log"
	}

	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown tracing exporter %q (want none or stdout)", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be in [0,1], got %g", c.Tracing.SampleRatio)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv("ZIPYIELD_CONFIG"); p != "" {
		return p
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// LevelIsValid reports whether the configured log level parses.
func (l *LoggingConfig) LevelIsValid() bool {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Name:           "housing",
			User:           "postgres",
			SSLMode:        "prefer",
			MinConns:       1,
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/pipeline.log",
		},
		Pipeline: PipelineConfig{
			UpsertBatchSize: 1000,
			ReportTopN:      10,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1.0,
			ServiceName: "zipyield",
		},
	}
}
