// Package common provides shared utilities for Finpoint
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the Finpoint snapshot engine.
type Config struct {
	Environment string        `toml:"environment"`
	Engine      EngineConfig  `toml:"engine"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
}

// EngineConfig holds snapshot engine tuning.
type EngineConfig struct {
	// ProcessingMode selects the default recomputation strategy:
	// "cascade" (date-by-date, always safe) or "batch" (single-pass,
	// falls back to cascade on error).
	ProcessingMode string `toml:"processing_mode"`
	// MaxConcurrency bounds parallel per-currency calculation fan-out.
	MaxConcurrency int `toml:"max_concurrency"`
	// DefaultCurrency is the fallback currency when the preference
	// store has no value for a broker account.
	DefaultCurrency string `toml:"default_currency"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is "badger" (embedded, default) or "surrealdb".
	Backend string       `toml:"backend"`
	Badger  BadgerConfig `toml:"badger"`
	Surreal SurrealConfig `toml:"surrealdb"`
}

// BadgerConfig holds the embedded store path.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// SurrealConfig holds SurrealDB connection settings.
type SurrealConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Engine: EngineConfig{
			ProcessingMode:  "cascade",
			MaxConcurrency:  4,
			DefaultCurrency: "USD",
		},
		Storage: StorageConfig{
			Backend: "badger",
			Badger:  BadgerConfig{Path: "data/finpoint"},
			Surreal: SurrealConfig{
				Address:   "ws://localhost:8000",
				Namespace: "finpoint",
				Database:  "finpoint",
				Username:  "root",
				Password:  "root",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Outputs:  []string{"console"},
			FilePath: "./logs/finpoint.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINPOINT_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("FINPOINT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if mode := os.Getenv("FINPOINT_PROCESSING_MODE"); mode != "" {
		config.Engine.ProcessingMode = mode
	}

	if n := os.Getenv("FINPOINT_MAX_CONCURRENCY"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			config.Engine.MaxConcurrency = v
		}
	}

	if c := os.Getenv("FINPOINT_DEFAULT_CURRENCY"); c != "" {
		config.Engine.DefaultCurrency = strings.ToUpper(c)
	}

	if backend := os.Getenv("FINPOINT_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if path := os.Getenv("FINPOINT_DATA_PATH"); path != "" {
		config.Storage.Badger.Path = filepath.Join(path, "finpoint")
	}

	if addr := os.Getenv("FINPOINT_SURREAL_ADDRESS"); addr != "" {
		config.Storage.Surreal.Address = addr
	}
	if user := os.Getenv("FINPOINT_SURREAL_USERNAME"); user != "" {
		config.Storage.Surreal.Username = user
	}
	if pass := os.Getenv("FINPOINT_SURREAL_PASSWORD"); pass != "" {
		config.Storage.Surreal.Password = pass
	}
}

// validate checks configuration values that have a closed set of options.
func validate(config *Config) error {
	mode := strings.ToLower(strings.TrimSpace(config.Engine.ProcessingMode))
	if mode != "cascade" && mode != "batch" {
		return fmt.Errorf("invalid processing_mode %q: must be cascade or batch", config.Engine.ProcessingMode)
	}
	config.Engine.ProcessingMode = mode

	backend := strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if backend != "badger" && backend != "surrealdb" {
		return fmt.Errorf("invalid storage backend %q: must be badger or surrealdb", config.Storage.Backend)
	}
	config.Storage.Backend = backend

	if config.Engine.MaxConcurrency <= 0 {
		config.Engine.MaxConcurrency = 4
	}

	config.Engine.DefaultCurrency = strings.ToUpper(strings.TrimSpace(config.Engine.DefaultCurrency))
	if config.Engine.DefaultCurrency == "" {
		config.Engine.DefaultCurrency = "USD"
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
