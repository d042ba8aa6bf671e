// Package config provides configuration loading and management for the
// defacing tool. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML. Command
// line flags override the values read here.
type Config struct {
	// Defacing parameters
	Defacing struct {
		// Buffer is the distance in voxels between the shear line and the
		// nearest point of the brain mask
		Buffer int `yaml:"buffer"`

		// Hemisphere selects the direction of the first canonical axis,
		// "R" or "L"
		Hemisphere string `yaml:"hemisphere"`
	} `yaml:"defacing"`

	// Preview parameters
	Preview struct {
		// Enabled renders a midsagittal QC image next to each output
		Enabled bool `yaml:"enabled"`

		// Width is the pixel width of the rendered preview
		Width int `yaml:"width"`
	} `yaml:"preview"`

	// Batch parameters
	Batch struct {
		// Workers is the number of subjects defaced concurrently; zero
		// sizes the pool from the machine's cores and free memory
		Workers int `yaml:"workers"`

		// ContinueOnError keeps a batch running past failed subjects and
		// reports the failures at the end
		ContinueOnError bool `yaml:"continueOnError"`
	} `yaml:"batch"`

	// Output parameters
	Output struct {
		// Report logs defacing statistics after each subject
		Report bool `yaml:"report"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default defacing parameters
	cfg.Defacing.Buffer = 10
	cfg.Defacing.Hemisphere = "R"

	// Set default preview parameters
	cfg.Preview.Enabled = false
	cfg.Preview.Width = 512

	// Set default batch parameters
	cfg.Batch.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Batch.ContinueOnError = true

	// Set default output parameters
	cfg.Output.Report = true
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the configuration for values no run could proceed with.
func (cfg *Config) Validate() error {
	if cfg.Defacing.Buffer < 0 {
		return fmt.Errorf("invalid buffer %d: must be nonnegative", cfg.Defacing.Buffer)
	}
	switch cfg.Defacing.Hemisphere {
	case "R", "r", "L", "l":
	default:
		return fmt.Errorf("invalid hemisphere %q: must be R or L", cfg.Defacing.Hemisphere)
	}
	if cfg.Preview.Width < 1 {
		return fmt.Errorf("invalid preview width %d", cfg.Preview.Width)
	}
	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("invalid worker count %d", cfg.Batch.Workers)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
