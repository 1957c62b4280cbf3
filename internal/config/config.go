// Package config provides configuration management for the flowchart CLI
// and the reference store.
//
// Config file locations (priority order):
//  1. $FLOWCHART_CONFIG
//  2. ./flowchart.yaml
//  3. ~/.config/flowchart/config.yaml
//  4. /etc/flowchart/config.yaml
//
// A .env file in the working directory is loaded first when present, and
// FLOWCHART_* environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvStoreURL  = "FLOWCHART_STORE_URL"
	EnvLogLevel  = "FLOWCHART_LOG_LEVEL"
	EnvJWTSecret = "FLOWCHART_JWT_SECRET"
	EnvDatabase  = "FLOWCHART_DB"
	EnvAddr      = "FLOWCHART_ADDR"
	EnvSession   = "FLOWCHART_SESSION"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", err
	}

	path := FindConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	cfg.applyEnv()

	return cfg, path, nil
}

// Parse decodes YAML config over the defaults. Keys missing from data keep
// their default value.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{
		// zero is a valid origin, so it cannot be filled in later
		Planner: PlannerConfig{OriginX: 100, OriginY: 100},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Store.URL == "" {
		c.Store.URL = "http://localhost:5001"
	}
	c.Store.URL = strings.TrimRight(c.Store.URL, "/")
	if c.Store.Timeout == 0 {
		c.Store.Timeout = Duration(10 * time.Second)
	}
	b := &c.Store.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 5
	}
	if b.Interval == 0 {
		b.Interval = Duration(30 * time.Second)
	}
	if b.Timeout == 0 {
		b.Timeout = Duration(60 * time.Second)
	}
	if b.MinRequests == 0 {
		b.MinRequests = 5
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 0.8
	}

	if c.Session.Path == "" {
		c.Session.Path = DefaultSessionPath()
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	if c.Planner.Window == 0 {
		c.Planner.Window = 200
	}
	if c.Planner.MaxIDAttempts == 0 {
		c.Planner.MaxIDAttempts = 8
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":5001"
	}
	if c.Server.Database == "" {
		c.Server.Database = "./flowchart.db"
	}
	if c.Server.Auth.TokenTTL == 0 {
		c.Server.Auth.TokenTTL = Duration(24 * time.Hour)
	}
}

// applyEnv applies FLOWCHART_* overrides
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvStoreURL); v != "" {
		c.Store.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Server.Auth.Secret = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Server.Database = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvSession); v != "" {
		c.Session.Path = v
	}
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Server.Auth.Required && c.Server.Auth.Secret == "" {
		return fmt.Errorf("server.auth.required is set but no secret is configured (%s)", EnvJWTSecret)
	}
	if c.Store.Breaker.FailureThreshold <= 0 || c.Store.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("store.breaker.failure_threshold must be in (0,1], got %v", c.Store.Breaker.FailureThreshold)
	}
	return nil
}

// loadDotEnv loads a .env file if it exists. Existing variables win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
