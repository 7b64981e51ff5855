// Package config provides configuration loading, validation, and hot
// reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Quota    QuotaConfig    `yaml:"quota"`
	Database DatabaseConfig `yaml:"database"`
	Users    RemoteConfig   `yaml:"user_service"`
	Storage  RemoteConfig   `yaml:"storage_service"`
	Reset    ResetConfig    `yaml:"reset"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// QuotaConfig configures the accounting quota. The limit is shared across
// all users and must be positive; zero is a configuration error, not a
// runtime exception path.
type QuotaConfig struct {
	DailyLimitBytes int64 `yaml:"daily_limit_bytes"`
}

// DatabaseConfig configures persistence. Driver "memory" keeps records
// in-process (development only).
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// RemoteConfig configures an external collaborator service endpoint.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ResetConfig configures the scheduled reset sweep of prior-day records.
type ResetConfig struct {
	SweepEnabled  bool          `yaml:"sweep_enabled"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CORSConfig configures cross-origin access for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file, applies USAGEMETER_*
// environment overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	USAGEMETER_USER_SERVICE_URL     - User-profile service URL (required)
//	USAGEMETER_STORAGE_SERVICE_URL  - Storage service URL (required)
//	USAGEMETER_DAILY_LIMIT_BYTES    - Daily byte quota (default: 104857600)
//	USAGEMETER_DATABASE_DSN         - Database path (default: usagemeter.db)
//	USAGEMETER_SERVER_HOST          - Server host (default: 0.0.0.0)
//	USAGEMETER_SERVER_PORT          - Server port (default: 5001)
//	USAGEMETER_LOG_LEVEL            - Log level (default: info)
//	USAGEMETER_LOG_FORMAT           - Log format: json or console
//	USAGEMETER_METRICS_ENABLED      - Enable /metrics (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set USAGEMETER_USER_SERVICE_URL and USAGEMETER_STORAGE_SERVICE_URL")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("USAGEMETER_USER_SERVICE_URL") != "" &&
		os.Getenv("USAGEMETER_STORAGE_SERVICE_URL") != ""
}

// applyEnvOverrides applies USAGEMETER_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("USAGEMETER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("USAGEMETER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("USAGEMETER_DAILY_LIMIT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Quota.DailyLimitBytes = n
		}
	}
	if v := os.Getenv("USAGEMETER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("USAGEMETER_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("USAGEMETER_USER_SERVICE_URL"); v != "" {
		cfg.Users.URL = v
	}
	if v := os.Getenv("USAGEMETER_STORAGE_SERVICE_URL"); v != "" {
		cfg.Storage.URL = v
	}
	if v := os.Getenv("USAGEMETER_RESET_SWEEP_ENABLED"); v != "" {
		cfg.Reset.SweepEnabled = parseBool(v)
	}
	if v := os.Getenv("USAGEMETER_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("USAGEMETER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("USAGEMETER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("USAGEMETER_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}

	if cfg.Quota.DailyLimitBytes == 0 {
		cfg.Quota.DailyLimitBytes = 100 << 20 // 100 MiB
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "usagemeter.db"
	}

	if cfg.Users.Timeout == 0 {
		cfg.Users.Timeout = 5 * time.Second
	}
	if cfg.Storage.Timeout == 0 {
		cfg.Storage.Timeout = 5 * time.Second
	}

	if cfg.Reset.SweepInterval == 0 {
		cfg.Reset.SweepInterval = time.Hour
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Quota.DailyLimitBytes <= 0 {
		return fmt.Errorf("quota.daily_limit_bytes must be positive, got %d", cfg.Quota.DailyLimitBytes)
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	if cfg.Users.URL == "" {
		return fmt.Errorf("user_service.url is required")
	}
	if cfg.Storage.URL == "" {
		return fmt.Errorf("storage_service.url is required")
	}

	return nil
}
