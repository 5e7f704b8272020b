// Package config provides configuration loading and management for idftprep.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"idftprep/pkg/arraystore"
	"idftprep/pkg/imaging"
	"idftprep/pkg/units"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "IDFTPREP_CONFIG"

// DefaultConfigPath is used when neither a flag nor EnvConfigPath is set.
const DefaultConfigPath = "idftprep.yaml"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers bounds how many partitions are processed concurrently
		Workers int `yaml:"workers"`

		// Oversampling divides the theoretical resolution to get the cellsize
		Oversampling float64 `yaml:"oversampling"`

		// ImageSize is the number of pixels per side of the reference image
		ImageSize int `yaml:"imageSize"`

		// Cellsize overrides the derived cellsize, e.g. "0.5arcsec". Empty
		// means derive it from the dataset.
		Cellsize string `yaml:"cellsize"`

		// PaddingFactor enlarges the image before the forward transform
		PaddingFactor float64 `yaml:"paddingFactor"`
	} `yaml:"processing"`

	// Array store parameters
	Store struct {
		Path       string `yaml:"path"`
		Overwrite  bool   `yaml:"overwrite"`
		Compressor string `yaml:"compressor"`
		Level      int    `yaml:"level"`
		ChunkRows  int    `yaml:"chunkRows"`

		// Backend is "host" or "aligned"
		Backend string `yaml:"backend"`

		// IOLimit caps the write rate in bytes per second; 0 is unlimited
		IOLimit int `yaml:"ioLimit"`
	} `yaml:"store"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Optional side products. Empty paths disable them.
	Output struct {
		FITS      string `yaml:"fits"`
		Quicklook string `yaml:"quicklook"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.Oversampling = imaging.DefaultOversampling
	cfg.Processing.ImageSize = imaging.DefaultImageSize
	cfg.Processing.PaddingFactor = 1.0

	cfg.Store.Path = "idft_inputs.zarr"
	cfg.Store.Overwrite = true
	cfg.Store.Compressor = arraystore.CompressorZstd
	cfg.Store.Level = 3
	cfg.Store.ChunkRows = 4096
	cfg.Store.Backend = "host"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Processing.Oversampling <= 0 {
		return fmt.Errorf("processing.oversampling must be positive, got %g", c.Processing.Oversampling)
	}
	if c.Processing.ImageSize < 1 {
		return fmt.Errorf("processing.imageSize must be at least 1, got %d", c.Processing.ImageSize)
	}
	if c.Processing.PaddingFactor < 1 {
		return fmt.Errorf("processing.paddingFactor must be >= 1, got %g", c.Processing.PaddingFactor)
	}
	if _, err := c.Cellsize(); err != nil {
		return err
	}
	if _, err := arraystore.BackendByName(c.Store.Backend); err != nil {
		return err
	}
	if c.Store.IOLimit < 0 {
		return fmt.Errorf("store.ioLimit must not be negative, got %d", c.Store.IOLimit)
	}
	switch c.Store.Compressor {
	case "", arraystore.CompressorNone, arraystore.CompressorZstd, arraystore.CompressorLZ4:
	default:
		return fmt.Errorf("store.compressor %q is not one of none, zstd, lz4", c.Store.Compressor)
	}
	return nil
}

// Cellsize returns the configured cellsize override, or zero when unset.
func (c *Config) Cellsize() (units.Angle, error) {
	if c.Processing.Cellsize == "" {
		return 0, nil
	}
	a, err := units.ParseAngle(c.Processing.Cellsize)
	if err != nil {
		return 0, fmt.Errorf("processing.cellsize: %w", err)
	}
	if a <= 0 {
		return 0, fmt.Errorf("processing.cellsize must be positive, got %s", c.Processing.Cellsize)
	}
	return a, nil
}

// StoreOptions converts the store section into arraystore options.
func (c *Config) StoreOptions() (arraystore.Options, error) {
	backend, err := arraystore.BackendByName(c.Store.Backend)
	if err != nil {
		return arraystore.Options{}, err
	}
	return arraystore.Options{
		Overwrite:  c.Store.Overwrite,
		Compressor: c.Store.Compressor,
		Level:      c.Store.Level,
		ChunkRows:  c.Store.ChunkRows,
		Backend:    backend,
		Workers:    c.Processing.Workers,

		IOLimitBytesPerSec: c.Store.IOLimit,
	}, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
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

// ResolvePath picks the config file: the explicit flag value, then
// EnvConfigPath, then DefaultConfigPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}
