// Package config provides configuration loading and management for lesionpatch.
// It handles loading configuration from YAML files, applies overrides from the
// environment (optionally seeded from a .env file) and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override YAML settings.
const (
	EnvDataset   = "LESIONPATCH_DATASET"
	EnvQuery     = "LESIONPATCH_QUERY"
	EnvPatchSize = "LESIONPATCH_PATCH_SIZE"
	EnvOutputDir = "LESIONPATCH_OUTPUT_DIR"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Dataset locates the lesion source
	Dataset struct {
		// Root is the dataset directory holding the lesion table and patient folders
		Root string `yaml:"root"`

		// LesionsFile is the lesion table, relative to Root
		LesionsFile string `yaml:"lesionsFile"`

		// Name is the first segment of lesion names; defaults to the base of Root
		Name string `yaml:"name"`
	} `yaml:"dataset"`

	// Extraction parameters
	Extraction struct {
		// QueryWords lists the requested modalities, in sample order
		QueryWords []string `yaml:"queryWords"`

		// PatchSize is the side length of extracted patches in pixels
		PatchSize int `yaml:"patchSize"`
	} `yaml:"extraction"`

	// Output parameters
	Output struct {
		// Dir is where exported samples are written
		Dir string `yaml:"dir"`

		// WritePNG saves every patch as a 16-bit grayscale PNG
		WritePNG bool `yaml:"writePNG"`

		// PNGScale upsamples PNG patches by an integer factor
		PNGScale int `yaml:"pngScale"`

		// WriteManifest saves a CSV manifest with one row per sample
		WriteManifest bool `yaml:"writeManifest"`

		// WriteParquet saves all patches to a Parquet file
		WriteParquet bool `yaml:"writeParquet"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Dataset.LesionsFile = "lesions.csv"

	cfg.Extraction.QueryWords = []string{"ADC", "t2_tse_tra"}
	cfg.Extraction.PatchSize = 16

	cfg.Output.Dir = "lesion_patches"
	cfg.Output.WritePNG = true
	cfg.Output.PNGScale = 4
	cfg.Output.WriteManifest = true
	cfg.Output.WriteParquet = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads KEY=VALUE pairs from the given .env files into the process
// environment (without overriding variables already set) and applies them to
// cfg. Missing .env files are ignored.
func LoadEnv(cfg *Config, envFiles ...string) error {
	for _, f := range envFiles {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading env file %s: %w", f, err)
		}
	}

	return ApplyEnv(cfg)
}

// ApplyEnv overrides cfg with any LESIONPATCH_* variables that are set
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvDataset); v != "" {
		cfg.Dataset.Root = v
	}
	if v := os.Getenv(EnvQuery); v != "" {
		cfg.Extraction.QueryWords = SplitList(v)
	}
	if v := os.Getenv(EnvPatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPatchSize, v, err)
		}
		cfg.Extraction.PatchSize = n
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.Output.Dir = v
	}
	return nil
}

// Validate checks that the configuration can drive an extraction run
func (c *Config) Validate() error {
	var errs []error
	if c.Dataset.Root == "" {
		errs = append(errs, errors.New("dataset root is required"))
	}
	if len(c.Extraction.QueryWords) == 0 {
		errs = append(errs, errors.New("at least one query word is required"))
	}
	if c.Extraction.PatchSize <= 0 {
		errs = append(errs, fmt.Errorf("patch size must be positive, got %d", c.Extraction.PatchSize))
	}
	if c.Output.PNGScale <= 0 {
		errs = append(errs, fmt.Errorf("png scale must be positive, got %d", c.Output.PNGScale))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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
