// ABOUTME: Configuration loading and parsing for labmap
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults applied when a field is left empty.
const (
	DefaultHTTPAddr        = "127.0.0.1:8501"
	DefaultSessionDuration = 12 * time.Hour
	DefaultPreviewRows     = 20
	DefaultMaxUploadMB     = 32
	DefaultResultTTL       = 30 * time.Minute
	DefaultResultCacheSize = 64
	DefaultArchivePrefix   = "exports"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Config represents the complete labmap configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// SecureCookies sets the Secure flag on session and CSRF cookies.
	SecureCookies bool `yaml:"secure_cookies"`
}

// DatabaseConfig selects the user directory backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// SessionConfig holds login session timing
type SessionConfig struct {
	Duration    time.Duration `yaml:"-"`
	DurationRaw string        `yaml:"duration"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MappingConfig holds upload and result limits
type MappingConfig struct {
	PreviewRows     int `yaml:"preview_rows"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
	ResultCacheSize int `yaml:"result_cache_size"`

	ResultTTL    time.Duration `yaml:"-"`
	ResultTTLRaw string        `yaml:"result_ttl"`
}

// MaxUploadBytes returns the request body limit for an upload.
func (m MappingConfig) MaxUploadBytes() int64 {
	return int64(m.MaxUploadMB) << 20
}

// ArchiveConfig holds optional S3 archiving of exports
type ArchiveConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and the SQLite
// database placed under the user's data directory.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults fills empty fields.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = filepath.Join(DataDir(), "labmap.db")
	}
	if c.Session.Duration == 0 {
		c.Session.Duration = DefaultSessionDuration
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Mapping.PreviewRows == 0 {
		c.Mapping.PreviewRows = DefaultPreviewRows
	}
	if c.Mapping.MaxUploadMB == 0 {
		c.Mapping.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Mapping.ResultCacheSize == 0 {
		c.Mapping.ResultCacheSize = DefaultResultCacheSize
	}
	if c.Mapping.ResultTTL == 0 {
		c.Mapping.ResultTTL = DefaultResultTTL
	}
	if c.Archive.Enabled && c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Session.Duration < 0 {
		return errors.New("session.duration must be positive")
	}
	if c.Mapping.PreviewRows < 0 {
		return errors.New("mapping.preview_rows must not be negative")
	}
	if c.Mapping.MaxUploadMB < 0 {
		return errors.New("mapping.max_upload_mb must not be negative")
	}
	if c.Mapping.ResultTTL < 0 {
		return errors.New("mapping.result_ttl must be positive")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archive is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.DurationRaw != "" {
		cfg.Session.Duration, err = time.ParseDuration(cfg.Session.DurationRaw)
		if err != nil {
			return fmt.Errorf("parsing session.duration %q: %w", cfg.Session.DurationRaw, err)
		}
	}

	if cfg.Mapping.ResultTTLRaw != "" {
		cfg.Mapping.ResultTTL, err = time.ParseDuration(cfg.Mapping.ResultTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing mapping.result_ttl %q: %w", cfg.Mapping.ResultTTLRaw, err)
		}
	}

	return nil
}

// ResolvePath returns the configuration file to load.
// Priority: flag value > LABMAP_CONFIG env var > XDG_CONFIG_HOME/labmap/config.yaml > ~/.config/labmap/config.yaml
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if envPath := os.Getenv("LABMAP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "labmap", "config.yaml")
}

// DataDir returns the labmap data directory.
// Priority: XDG_DATA_HOME/labmap > ~/.local/share/labmap
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "labmap")
}

// SampleConfig is written by `labmap init`.
const SampleConfig = `# labmap configuration
server:
  http_addr: "127.0.0.1:8501"
  secure_cookies: false

database:
  driver: "sqlite"            # sqlite or postgres
  path: "${HOME}/.local/share/labmap/labmap.db"
  # dsn: "${LABMAP_DATABASE_DSN}"

session:
  duration: "12h"

logging:
  level: "info"   # debug, info, warn, error
  format: "text"  # text, json

mapping:
  preview_rows: 20
  max_upload_mb: 32
  result_ttl: "30m"
  result_cache_size: 64

archive:
  enabled: false
  bucket: ""
  prefix: "exports"
  region: "eu-west-3"
  # endpoint: "http://127.0.0.1:9000"
  # access_key: "${LABMAP_S3_ACCESS_KEY}"
  # secret_key: "${LABMAP_S3_SECRET_KEY}"
  use_path_style: false
`
