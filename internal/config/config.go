// Package config loads kost settings from an optional YAML file, a .env file
// and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultConfigFile = "kost.yaml"
)

type Config struct {
	Database Database `yaml:"database"`
	Logging  Logging  `yaml:"logging"`

	// MigrationsPath is a directory of extra <version>_<name>.up.sql files.
	MigrationsPath string `yaml:"migrations_path"`

	// PropertyID preselects a property for CLI commands.
	PropertyID string `yaml:"property_id"`
}

type Database struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type Logging struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Database:       Database{Driver: DriverSQLite, URL: "kost.db"},
		Logging:        Logging{Level: "info"},
		MigrationsPath: "migrations",
	}
}

// Load reads configPath when it exists, then .env, then applies environment
// overrides. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	_ = godotenv.Load()
	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		cfg.MigrationsPath = path
	}
	if id := os.Getenv("PROPERTY_ID"); id != "" {
		cfg.PropertyID = id
	}
}

func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}
