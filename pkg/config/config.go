/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/sink"
)

// Config represents the snapshot-etl configuration
type Config struct {
	ContainersDir string  `yaml:"containers_dir"`
	Manifest      string  `yaml:"manifest"`
	Owner         string  `yaml:"owner"`
	Sink          Sink    `yaml:"sink"`
	Inspect       Inspect `yaml:"inspect"`
	Logging       Logging `yaml:"logging"`
	Metrics       Metrics `yaml:"metrics"`
}

// Sink selects the destination store
type Sink struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Inspect contains settings for the inspect command
type Inspect struct {
	Workers int `yaml:"workers"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics contains metrics export configuration
type Metrics struct {
	// Textfile, when set, receives the run's metrics in the Prometheus text
	// format after every run.
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ContainersDir: "./accounts",
		Sink: Sink{
			Backend: sink.BackendSQLite,
			Path:    "./accounts.db",
		},
		Inspect: Inspect{
			Workers: 4,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks that the configuration can drive an extraction run
func (c *Config) Validate() error {
	if c.ContainersDir == "" {
		return fmt.Errorf("containers_dir is required")
	}
	if _, err := codec.ParsePubkey(c.Owner); err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}
	switch c.Sink.Backend {
	case sink.BackendSQLite, sink.BackendPebble:
	default:
		return fmt.Errorf("unsupported sink backend %q", c.Sink.Backend)
	}
	if c.Sink.Path == "" {
		return fmt.Errorf("sink path is required")
	}
	if c.Inspect.Workers < 1 {
		return fmt.Errorf("inspect workers must be at least 1, got %d", c.Inspect.Workers)
	}
	return nil
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./snapshot-etl.yaml"
	}

	// For Linux/macOS, use ~/.config/snapshot-etl/config.yaml
	configDir := filepath.Join(homeDir, ".config", "snapshot-etl")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
