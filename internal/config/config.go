// Package config provides configuration management for plannr.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// PlannrDir is the plannr configuration directory
	PlannrDir = ".plannr"
)

// Storage backends.
const (
	BackendDatabase = "database"
	BackendFile     = "file"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the plannr configuration.
type Config struct {
	Version  int            `yaml:"version"`
	LogLevel string         `yaml:"log_level"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
}

// StorageConfig selects where projects and tasks are persisted.
type StorageConfig struct {
	// Backend is "database" (SQLite or PostgreSQL) or "file" (JSON snapshot).
	Backend string            `yaml:"backend"`
	File    FileStorageConfig `yaml:"file"`
}

// FileStorageConfig configures the JSON snapshot backend.
type FileStorageConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig configures the database backend.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ImportConfig bounds archive imports.
type ImportConfig struct {
	// MaxDepth caps task nesting in an imported hierarchy.
	MaxDepth int `yaml:"max_depth"`
	// MaxEntrySize caps the bytes read from any one archive entry.
	MaxEntrySize int64 `yaml:"max_entry_size"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:  1,
		LogLevel: "info",
		Storage: StorageConfig{
			Backend: BackendDatabase,
			File:    FileStorageConfig{Path: "~/.plannr/plannr.json"},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{Path: "~/.plannr/plannr.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "plannr",
				User:     "plannr",
				SSLMode:  "disable",
			},
		},
		Import: ImportConfig{
			MaxDepth:     200,
			MaxEntrySize: 64 << 20,
		},
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks enumerated fields and limits.
func (c *Config) Validate() error {
	if !slices.Contains([]string{BackendDatabase, BackendFile}, c.Storage.Backend) {
		return plannrerrors.ErrConfigInvalid("storage.backend",
			fmt.Sprintf("%q is not one of database, file", c.Storage.Backend))
	}
	if c.Storage.Backend == BackendFile && c.Storage.File.Path == "" {
		return plannrerrors.ErrConfigInvalid("storage.file.path", "path is required for the file backend")
	}
	if !slices.Contains([]string{DriverSQLite, DriverPostgres}, c.Database.Driver) {
		return plannrerrors.ErrConfigInvalid("database.driver",
			fmt.Sprintf("%q is not one of sqlite, postgres", c.Database.Driver))
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLite.Path == "" {
		return plannrerrors.ErrConfigInvalid("database.sqlite.path", "path is required for sqlite")
	}
	if c.Database.Driver == DriverPostgres {
		if c.Database.Postgres.Host == "" {
			return plannrerrors.ErrConfigInvalid("database.postgres.host", "host is required for postgres")
		}
		if c.Database.Postgres.Port <= 0 || c.Database.Postgres.Port > 65535 {
			return plannrerrors.ErrConfigInvalid("database.postgres.port",
				fmt.Sprintf("port %d out of range", c.Database.Postgres.Port))
		}
	}
	if c.Import.MaxDepth <= 0 {
		return plannrerrors.ErrConfigInvalid("import.max_depth", "must be positive")
	}
	if c.Import.MaxEntrySize <= 0 {
		return plannrerrors.ErrConfigInvalid("import.max_entry_size", "must be positive")
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		return plannrerrors.ErrConfigInvalid("log_level",
			fmt.Sprintf("%q is not one of %s", c.LogLevel, strings.Join(logLevels, ", ")))
	}
	return nil
}

// SlogLevel returns the configured log level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DSN returns the database connection string: the expanded file path for
// sqlite or a postgres:// URL.
func (c *Config) DSN() string {
	if c.Database.Driver == DriverPostgres {
		pg := c.Database.Postgres
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(pg.Host, strconv.Itoa(pg.Port)),
			Path:   "/" + pg.Database,
		}
		if pg.Password != "" {
			u.User = url.UserPassword(pg.User, pg.Password)
		} else if pg.User != "" {
			u.User = url.User(pg.User)
		}
		if pg.SSLMode != "" {
			u.RawQuery = "sslmode=" + url.QueryEscape(pg.SSLMode)
		}
		return u.String()
	}
	return ExpandPath(c.Database.SQLite.Path)
}

// FilePath returns the expanded snapshot path for the file backend.
func (c *Config) FilePath() string {
	return ExpandPath(c.Storage.File.Path)
}

// StateDir returns the directory of the local store, where lock files live.
func (c *Config) StateDir() string {
	switch {
	case c.Storage.Backend == BackendFile:
		return filepath.Dir(c.FilePath())
	case c.Database.Driver == DriverSQLite:
		return filepath.Dir(c.DSN())
	default:
		return ExpandPath("~/" + PlannrDir)
	}
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Load loads the config from the project location.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(PlannrDir, ConfigFileName))
}

// LoadFrom loads the config from a specific path over the defaults.
// A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save saves the config to the project location.
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(PlannrDir, ConfigFileName))
}

// SaveTo saves the config to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
