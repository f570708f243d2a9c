// Package config loads engine configuration and tenant definitions.
// Configuration comes from config.yaml with environment variable
// overrides; secrets (central-store password, tenant backend passwords)
// must only come from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Watch modes for the template directory.
const (
	WatchFSNotify = "fsnotify"
	WatchPoll     = "poll"
)

// Config holds all configuration for medrelay-engine.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // set at load time, not from config

	// TemplateRoot is the directory holding per-tenant query templates:
	// <root>/<tenant-id-lowercased>/<entity>-query.json.
	TemplateRoot string `yaml:"template_root" env:"TEMPLATE_ROOT" env-default:"./templates"`

	// TenantDir holds one YAML definition file per hospital.
	TenantDir string `yaml:"tenant_dir" env:"TENANT_DIR" env-default:"./tenants"`

	// WatchMode selects the template change-notification source:
	// "fsnotify" (inotify/kqueue) or "poll" (1s mtime scan).
	WatchMode string `yaml:"watch_mode" env:"WATCH_MODE" env-default:"fsnotify"`

	// ProbeSweepSpec is the cron expression for the connectivity sweep.
	ProbeSweepSpec string `yaml:"probe_sweep_spec" env:"PROBE_SWEEP_SPEC" env-default:"@every 5m"`

	// MigrationsPath is the directory holding central-store migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	// Database is the central store (PostgreSQL).
	Database DatabaseConfig `yaml:"database"`

	// Source tunes the limits applied to every source query.
	Source SourceConfig `yaml:"source"`
}

// DatabaseConfig holds central-store PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"medrelay"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"medrelay_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SourceConfig holds the per-query limits for source database access.
type SourceConfig struct {
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"SOURCE_QUERY_TIMEOUT_SECONDS" env-default:"60"`
	MaxRows             int `yaml:"max_rows" env:"SOURCE_MAX_ROWS" env-default:"2000"`
	FetchSize           int `yaml:"fetch_size" env:"SOURCE_FETCH_SIZE" env-default:"500"`
}

// QueryTimeout returns the per-query timeout as a duration.
func (c *SourceConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.WatchMode != WatchFSNotify && c.WatchMode != WatchPoll {
		return fmt.Errorf("watch_mode must be %q or %q, got %q", WatchFSNotify, WatchPoll, c.WatchMode)
	}
	return nil
}
