package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corelite/sqlite/sqlitelog"
)

// Config is the sqlitectl configuration.
// It is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig   `yaml:"database"`
	Logging  sqlitelog.Config `yaml:"logging"`
	Debug    DebugConfig      `yaml:"debug"`
	Backup   BackupConfig     `yaml:"backup"`
}

// DatabaseConfig says how to open the database.
type DatabaseConfig struct {
	Path        string        `yaml:"path"` // file path, or a file: URI
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	PoolSize    int           `yaml:"pool_size"`

	// Passphrase keys an encrypted database. Requires a sqlcipher build.
	Passphrase string `yaml:"passphrase"`
	// KeySalt is the hex salt used to stretch Passphrase.
	KeySalt string `yaml:"key_salt"`
}

// DebugConfig configures the debug HTTP server run by "serve".
type DebugConfig struct {
	Addr         string        `yaml:"addr"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// BackupConfig tunes the "backup" command.
type BackupConfig struct {
	PagesPerStep int           `yaml:"pages_per_step"`
	StepPause    time.Duration `yaml:"step_pause"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "sqlitectl.db",
			WALMode:     true,
			BusyTimeout: 5 * time.Second,
			PoolSize:    4,
		},
		Logging: sqlitelog.Config{
			Level:     "info",
			Format:    "text",
			Output:    "stderr",
			SlowQuery: 250 * time.Millisecond,
		},
		Debug: DebugConfig{
			Addr:         "localhost:8383",
			QueryTimeout: 10 * time.Second,
		},
		Backup: BackupConfig{
			PagesPerStep: 1024,
			StepPause:    time.Millisecond,
		},
	}
}

// loadConfig reads the YAML file at path over the defaults, then applies
// SQLITECTL_* environment overrides and validates the result.
// An empty path skips the file.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SQLITECTL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SQLITECTL_DATABASE_PASSPHRASE"); v != "" {
		cfg.Database.Passphrase = v
	}
	if v := os.Getenv("SQLITECTL_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SQLITECTL_POOL_SIZE: %w", err)
		}
		cfg.Database.PoolSize = n
	}
	if v := os.Getenv("SQLITECTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SQLITECTL_DEBUG_ADDR"); v != "" {
		cfg.Debug.Addr = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}
	if c.Database.PoolSize < 2 {
		errs = append(errs, "database.pool_size must be at least 2")
	}
	if c.Database.Passphrase != "" && c.Database.KeySalt == "" {
		errs = append(errs, "database.key_salt is required with a passphrase")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}
	if c.Backup.PagesPerStep == 0 {
		errs = append(errs, "backup.pages_per_step must not be 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
