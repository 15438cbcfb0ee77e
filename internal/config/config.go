// Package config loads service configuration from an optional YAML file
// with environment-variable overrides on top. Environment always wins, so
// a container deployment can ship a baseline file and tweak single knobs
// per instance.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete geomagd configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Model   ModelConfig   `yaml:"model"`
	Grid    GridConfig    `yaml:"grid"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

// AuthConfig contains bearer-token authentication settings.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// ModelConfig controls where coefficient files come from and how they are
// cached on disk.
type ModelConfig struct {
	CacheDir           string `yaml:"cache_dir"`
	MaxCacheFiles      int    `yaml:"max_cache_files"`
	FetchEnabled       bool   `yaml:"fetch_enabled"`
	FetchURL           string `yaml:"fetch_url"`
	FetchIntervalHours int    `yaml:"fetch_interval_hours"`
}

// GridConfig bounds batch grid evaluations.
type GridConfig struct {
	Workers   int `yaml:"workers"`
	MaxPoints int `yaml:"max_points"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Model: ModelConfig{
			CacheDir:           "/tmp/geomag/coeffs",
			MaxCacheFiles:      3,
			FetchIntervalHours: 24 * 7,
		},
		Grid: GridConfig{
			Workers:   runtime.NumCPU(),
			MaxPoints: 100000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

// applyEnv overlays GEOMAG_* environment variables onto the config.
func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "GEOMAG_HTTP_ADDR")
	setString(&c.Auth.Token, "GEOMAG_AUTH_TOKEN")
	setString(&c.Model.CacheDir, "GEOMAG_CACHE_DIR")
	setString(&c.Model.FetchURL, "GEOMAG_FETCH_URL")
	setString(&c.Logging.Level, "GEOMAG_LOG_LEVEL")

	for _, v := range []struct {
		dst  *bool
		name string
	}{
		{&c.Server.TrustProxy, "GEOMAG_TRUST_PROXY"},
		{&c.Auth.Enabled, "GEOMAG_AUTH_ENABLED"},
		{&c.Model.FetchEnabled, "GEOMAG_FETCH_ENABLED"},
	} {
		if err := setBool(v.dst, v.name); err != nil {
			return err
		}
	}

	for _, v := range []struct {
		dst  *int
		name string
	}{
		{&c.Model.MaxCacheFiles, "GEOMAG_MAX_CACHE_FILES"},
		{&c.Model.FetchIntervalHours, "GEOMAG_FETCH_INTERVAL_HOURS"},
		{&c.Grid.Workers, "GEOMAG_GRID_WORKERS"},
		{&c.Grid.MaxPoints, "GEOMAG_GRID_MAX_POINTS"},
	} {
		if err := setInt(v.dst, v.name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Auth.Enabled && c.Auth.Token == "" {
		return fmt.Errorf("auth enabled but no token configured (GEOMAG_AUTH_TOKEN)")
	}
	if c.Grid.Workers < 1 {
		return fmt.Errorf("grid workers must be positive, got %d", c.Grid.Workers)
	}
	if c.Grid.MaxPoints < 1 {
		return fmt.Errorf("grid max_points must be positive, got %d", c.Grid.MaxPoints)
	}
	return nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a boolean value (true/false/1/0)", name)
	}
	*dst = b
	return nil
}

func setInt(dst *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer", name)
	}
	*dst = n
	return nil
}
