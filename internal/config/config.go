// Package config loads the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"tinygo.org/x/bluetooth"
)

// Config holds all application configuration.
type Config struct {
	// KnownNames is the advertised-name allow-list. Empty means track
	// every discovered peripheral.
	KnownNames []string   `yaml:"known_names"`
	Scan       ScanConfig `yaml:"scan"`
	// StorePath is where the peripheral identity snapshot lives.
	StorePath string `yaml:"store_path"`
	LogLevel  string `yaml:"log_level"`
}

// ScanConfig holds scan-related settings.
type ScanConfig struct {
	// ServiceUUIDs narrows scanning to peripherals advertising one of
	// these services. Empty scans for everything.
	ServiceUUIDs []string `yaml:"service_uuids"`
	// EventBuffer is the transport event channel capacity.
	EventBuffer int `yaml:"event_buffer"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blecentral")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	storePath := filepath.Join(home, ".local", "share", "blecentral", "peripherals.json")

	return &Config{
		KnownNames: nil,
		Scan: ScanConfig{
			ServiceUUIDs: nil,
			EventBuffer:  64,
		},
		StorePath: storePath,
		LogLevel:  "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in store_path is expanded to the user's
// home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.StorePath = expandTilde(cfg.StorePath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}

	for _, name := range c.KnownNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("known_names must not contain blank entries")
		}
	}

	for _, s := range c.Scan.ServiceUUIDs {
		if _, err := bluetooth.ParseUUID(s); err != nil {
			return fmt.Errorf("scan.service_uuids entry %q is not a valid UUID: %w", s, err)
		}
	}

	if c.Scan.EventBuffer <= 0 {
		return fmt.Errorf("scan.event_buffer must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
