// Package config loads server settings from an optional TOML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ironsheep/image-roi-mcp/internal/measure"
	"github.com/ironsheep/image-roi-mcp/internal/shape"
)

// MeasurementOverride changes the flags of one catalog descriptor.
type MeasurementOverride struct {
	Variant  string `toml:"variant"`
	Name     string `toml:"name"`
	Computed *bool  `toml:"computed"`
	Quick    *bool  `toml:"quick"`
	Label    *bool  `toml:"label"`
}

type Config struct {
	LogLevel        string                `toml:"log_level"`
	LogFormat       string                `toml:"log_format"`
	CacheSize       int                   `toml:"cache_size"`
	Workers         int                   `toml:"workers"`
	HandleTolerance float64               `toml:"handle_tolerance"`
	PointSize       float64               `toml:"point_size"`
	Measurements    []MeasurementOverride `toml:"measurement"`

	// Path is the TOML file the config was read from, if any.
	Path string `toml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "json",
		CacheSize:       16,
		Workers:         0,
		HandleTolerance: 4,
		PointSize:       shape.DefaultPointSize,
	}
}

// Load reads the file named by IMAGE_ROI_CONFIG, if set, then applies
// environment overrides and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("IMAGE_ROI_CONFIG")); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a TOML file over the current values.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	c.Path = path
	return nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnvOrDefault("IMAGE_ROI_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("IMAGE_ROI_LOG_FORMAT", c.LogFormat)

	var err error
	if c.CacheSize, err = parseIntOrDefault("IMAGE_ROI_CACHE_SIZE", c.CacheSize); err != nil {
		return err
	}
	if c.Workers, err = parseIntOrDefault("IMAGE_ROI_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.HandleTolerance, err = parseFloatOrDefault("IMAGE_ROI_HANDLE_TOLERANCE", c.HandleTolerance); err != nil {
		return err
	}
	if c.PointSize, err = parseFloatOrDefault("IMAGE_ROI_POINT_SIZE", c.PointSize); err != nil {
		return err
	}
	return nil
}

// Validate rejects out-of-range settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q: want json or text", c.LogFormat)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be >= 1 (got %d)", c.CacheSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	if !(c.HandleTolerance > 0) {
		return fmt.Errorf("handle tolerance must be > 0 (got %v)", c.HandleTolerance)
	}
	if !(c.PointSize > 0) {
		return fmt.Errorf("point size must be > 0 (got %v)", c.PointSize)
	}
	for i, m := range c.Measurements {
		if _, err := shape.ParseVariant(m.Variant); err != nil {
			return fmt.Errorf("measurement[%d]: %w", i, err)
		}
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("measurement[%d]: name is required", i)
		}
	}
	return nil
}

// Catalog returns the default measurement catalog with the configured
// overrides applied.
func (c *Config) Catalog() (measure.Catalog, error) {
	cat := measure.DefaultCatalog()
	for i, m := range c.Measurements {
		v, err := shape.ParseVariant(m.Variant)
		if err != nil {
			return nil, fmt.Errorf("measurement[%d]: %w", i, err)
		}
		if err := cat.Override(v, m.Name, m.Computed, m.Quick, m.Label); err != nil {
			return nil, fmt.Errorf("measurement[%d]: %w", i, err)
		}
	}
	return cat, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return n, nil
}

func parseFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return f, nil
}
