// Package config provides unified configuration loading for thresholds.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/georgeberry/thresholds/internal/constants"
	"github.com/georgeberry/thresholds/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config contains all thresholds configuration settings.
type Config struct {
	// Logging contains settings for operational and run logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Output controls where per-node records and run summaries are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Batch contains replicate defaults applied when a scenario leaves them unset.
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the JSONL run log in the output directory.
	Level string `json:"level" yaml:"level" env:"THRESHOLDS_LOG_LEVEL"`
}

// OutputConfig configures result sinks.
type OutputConfig struct {
	// Dir receives one record file per run plus summaries.jsonl.
	// Empty disables the file sink.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" env:"THRESHOLDS_OUTPUT_DIR"`

	// Format is the record file format: "csv" (default) or "jsonl".
	Format constants.OutputFormat `json:"format" yaml:"format" env:"THRESHOLDS_OUTPUT_FORMAT"`

	// SQLitePath is the results database. Empty disables the SQLite sink.
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" env:"THRESHOLDS_SQLITE_PATH"`

	// PostgresURL is a pgx connection string. Supports ${VAR} syntax for env vars.
	// Empty disables the Postgres sink.
	PostgresURL string `json:"postgres_url,omitempty" yaml:"postgres_url,omitempty" env:"THRESHOLDS_POSTGRES_URL"`
}

// RedactedPostgresURL returns the Postgres URL with any password masked.
func (c OutputConfig) RedactedPostgresURL() string {
	if c.PostgresURL == "" {
		return ""
	}
	u, err := url.Parse(c.PostgresURL)
	if err != nil || u.Scheme == "" {
		return "(set)"
	}
	return u.Redacted()
}

// String implements fmt.Stringer to prevent accidental credential logging.
func (c OutputConfig) String() string {
	return fmt.Sprintf("OutputConfig{Dir:%s, Format:%s, SQLitePath:%s, PostgresURL:%s}",
		c.Dir, c.Format, c.SQLitePath, c.RedactedPostgresURL())
}

// BatchConfig configures replicate batches.
type BatchConfig struct {
	// Workers is the number of replicates simulated concurrently.
	Workers int `json:"workers" yaml:"workers" env:"THRESHOLDS_WORKERS"`

	// Replicates is the default number of runs per scenario.
	Replicates int `json:"replicates" yaml:"replicates" env:"THRESHOLDS_REPLICATES"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" env:"THRESHOLDS_METRICS_ADDR"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Format: constants.FormatCSV,
		},
		Batch: BatchConfig{
			Workers:    constants.DefaultWorkers,
			Replicates: constants.DefaultReplicates,
		},
	}
}

// Path returns the default config file location (~/.thresholds/config.yaml).
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName, constants.ConfigFileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.thresholds/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in the connection string
	config.Output.PostgresURL = expandEnvVars(config.Output.PostgresURL)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if !c.Output.Format.Valid() {
		return fmt.Errorf("invalid output format: %q (valid: csv, jsonl)", c.Output.Format)
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Batch.Workers)
	}

	if c.Batch.Replicates < 1 {
		return fmt.Errorf("replicates must be at least 1, got %d", c.Batch.Replicates)
	}

	return nil
}

// ApplyEnv applies THRESHOLDS_* environment variables on top of config.
// Unset variables leave the current value alone.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	config.Output.Format = constants.OutputFormat(strings.ToLower(string(config.Output.Format)))
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
