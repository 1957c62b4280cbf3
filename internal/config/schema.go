package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure shared by the CLI and the
// reference store
type Config struct {
	Version int           `yaml:"version"`
	Store   StoreConfig   `yaml:"store"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Planner PlannerConfig `yaml:"planner"`
	Server  ServerConfig  `yaml:"server"`
}

// StoreConfig tells the client where the flowchart store lives
type StoreConfig struct {
	URL     string        `yaml:"url"`
	Timeout Duration      `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker around store calls
type BreakerConfig struct {
	MaxRequests      uint32   `yaml:"max_requests"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	MinRequests      uint32   `yaml:"min_requests"`
	FailureThreshold float64  `yaml:"failure_threshold"`
}

// SessionConfig locates the cached authentication token
type SessionConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file,omitempty"`

	// Rotation, only used when File is set
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// PlannerConfig shapes generated nodes
type PlannerConfig struct {
	OriginX       float64 `yaml:"origin_x"`
	OriginY       float64 `yaml:"origin_y"`
	Window        float64 `yaml:"window"`
	MaxIDAttempts int     `yaml:"max_id_attempts"`
}

// ServerConfig holds reference store settings
type ServerConfig struct {
	Addr        string     `yaml:"addr"`
	Database    string     `yaml:"database"`
	SeedPath    string     `yaml:"seed,omitempty"`
	WatchSeed   bool       `yaml:"watch_seed"`
	CORSOrigins []string   `yaml:"cors_origins,omitempty"`
	Auth        AuthConfig `yaml:"auth"`
}

// AuthConfig controls login and bearer token checks on the store
type AuthConfig struct {
	Required bool     `yaml:"required"`
	Secret   string   `yaml:"secret,omitempty"`
	TokenTTL Duration `yaml:"token_ttl"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
