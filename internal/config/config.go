// Package config loads the service configuration from TOML files,
// environment variables, and defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/ratesheet/pkg/database"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvRatesheetEnv             = "RATESHEET_ENV"
	EnvRatesheetShutdownTimeout = "RATESHEET_SHUTDOWN_TIMEOUT"
	EnvRatesheetVersion         = "RATESHEET_VERSION"
)

var databaseEnv = &database.Env{
	URL:             "RATESHEET_DB_URL",
	Host:            "RATESHEET_DB_HOST",
	Port:            "RATESHEET_DB_PORT",
	Name:            "RATESHEET_DB_NAME",
	User:            "RATESHEET_DB_USER",
	Password:        "RATESHEET_DB_PASSWORD",
	SSLMode:         "RATESHEET_DB_SSL_MODE",
	MaxOpenConns:    "RATESHEET_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "RATESHEET_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "RATESHEET_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "RATESHEET_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "RATESHEET_STORAGE_PROVIDER",
	MaxListSize:      "RATESHEET_STORAGE_MAX_LIST_SIZE",
	LocalRoot:        "RATESHEET_STORAGE_LOCAL_ROOT",
	ContainerName:    "RATESHEET_STORAGE_CONTAINER_NAME",
	ConnectionString: "RATESHEET_STORAGE_CONNECTION_STRING",
	AccountURL:       "RATESHEET_STORAGE_ACCOUNT_URL",
	Bucket:           "RATESHEET_STORAGE_BUCKET",
	Region:           "RATESHEET_STORAGE_REGION",
	Endpoint:         "RATESHEET_STORAGE_ENDPOINT",
	AccessKeyID:      "RATESHEET_STORAGE_ACCESS_KEY_ID",
	SecretAccessKey:  "RATESHEET_STORAGE_SECRET_ACCESS_KEY",
	ForcePathStyle:   "RATESHEET_STORAGE_FORCE_PATH_STYLE",
}

// Config is the root configuration for the ratesheet service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Assistant       AssistantConfig  `toml:"assistant"`
	Extraction      ExtractionConfig `toml:"extraction"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env names the deployment environment. It selects the config overlay and
// the log format.
func (c *Config) Env() string {
	if env := os.Getenv(EnvRatesheetEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

// Load builds the configuration in layers: config.toml when present, then
// config.<RATESHEET_ENV>.toml, then defaults, then RATESHEET_* variables.
func Load() (*Config, error) {
	cfg := &Config{}

	for _, path := range []string{BaseConfigFile, overlayPath()} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}

		layer, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		cfg.Merge(layer)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge applies the set fields of overlay on top of c.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Assistant.Merge(&overlay.Assistant)
	c.Extraction.Merge(&overlay.Extraction)
}

func (c *Config) finalize() error {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if v := os.Getenv(EnvRatesheetShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvRatesheetVersion); v != "" {
		c.Version = v
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"assistant", c.Assistant.Finalize},
		{"extraction", c.Extraction.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvRatesheetEnv); env != "" {
		return fmt.Sprintf(OverlayConfigPattern, env)
	}
	return ""
}
