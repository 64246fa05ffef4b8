// ABOUTME: Configuration loading and parsing for chatvault
// ABOUTME: Supports YAML files with env var expansion, env overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete chatvault configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backup   BackupConfig   `yaml:"backup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" env:"CHATVAULT_HTTP_ADDR"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" env:"CHATVAULT_DB_PATH"`
}

// BackupConfig holds backup scheduling and retention configuration
type BackupConfig struct {
	Dir       string        `yaml:"dir" env:"CHATVAULT_BACKUP_DIR"`
	Retention int           `yaml:"retention" env:"CHATVAULT_BACKUP_RETENTION"`
	Interval  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	IntervalRaw string `yaml:"interval" env:"CHATVAULT_BACKUP_INTERVAL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CHATVAULT_LOG_LEVEL"`
	Format string `yaml:"format" env:"CHATVAULT_LOG_FORMAT"`
}

// Default returns the configuration used when no file and no
// environment overrides are present. Data lives under /data when that
// directory exists (the usual container mount) and under /tmp
// otherwise.
func Default() *Config {
	dataDir := "/data"
	if fi, err := os.Stat(dataDir); err != nil || !fi.IsDir() {
		dataDir = filepath.Join(os.TempDir(), "chatvault")
	}
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "0.0.0.0:8080",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "chatvault.db"),
		},
		Backup: BackupConfig{
			Dir:       filepath.Join(dataDir, "backups"),
			Retention: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML
// file at path (skipped when path is empty), then CHATVAULT_*
// environment variable overrides. Environment variables referenced in
// the file as ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir is required")
	}
	if c.Backup.Retention < 0 {
		return fmt.Errorf("backup.retention must not be negative")
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("backup.interval must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Backup.IntervalRaw == "" {
		return nil
	}
	interval, err := time.ParseDuration(cfg.Backup.IntervalRaw)
	if err != nil {
		return fmt.Errorf("parsing backup interval %q: %w", cfg.Backup.IntervalRaw, err)
	}
	cfg.Backup.Interval = interval
	return nil
}
