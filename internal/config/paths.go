package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "FLOWCHART_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "flowchart.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "flowchart"
	// SessionFileName is the token cache file name inside the config dir
	SessionFileName = "session.yaml"
)

// FindConfigPath searches for config file in priority order:
// 1. $FLOWCHART_CONFIG (explicit path)
// 2. ./flowchart.yaml (working directory)
// 3. $XDG_CONFIG_HOME/flowchart/config.yaml
// 4. ~/.config/flowchart/config.yaml
// 5. /etc/flowchart/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	// 1. Explicit environment variable
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	// 2. Working directory
	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	// 3. XDG config home
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 4. Default XDG location (~/.config)
	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 5. System-wide
	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

// ConfigDir returns the per-user config directory, falling back to the
// working directory when no home is known
func ConfigDir() string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, ConfigDirName)
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName)
	}
	return "."
}

// DefaultConfigPath returns the preferred location for a new config file
func DefaultConfigPath() string {
	if dir := ConfigDir(); dir != "." {
		return filepath.Join(dir, "config.yaml")
	}
	return ConfigFileName
}

// DefaultSessionPath returns where the auth token is cached
func DefaultSessionPath() string {
	return filepath.Join(ConfigDir(), SessionFileName)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
