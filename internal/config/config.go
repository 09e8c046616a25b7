package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Config represents the application configuration
type Config struct {
	Image    ImageConfig `mapstructure:"image" yaml:"image"`
	Preserve []string    `mapstructure:"preserve" yaml:"preserve"`
	Log      LogConfig   `mapstructure:"log" yaml:"log"`
}

// ImageConfig contains image recompression settings
type ImageConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	MaxWidth    int  `mapstructure:"max_width" yaml:"max_width"`
	JPEGQuality int  `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration. Unset numbers fall back to their
// defaults; values that cannot be meant are errors.
func (c *Config) Validate() error {
	if c.Image.MaxWidth == 0 {
		c.Image.MaxWidth = DefaultMaxImageWidth
	}
	if c.Image.MaxWidth < 0 {
		return fmt.Errorf("image.max_width must be positive, got %d", c.Image.MaxWidth)
	}
	if c.Image.JPEGQuality == 0 {
		c.Image.JPEGQuality = DefaultJPEGQuality
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100, got %d", c.Image.JPEGQuality)
	}

	for _, pattern := range c.Preserve {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid preserve pattern %q", pattern)
		}
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", c.Log.Level)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q (use text or json)", c.Log.Format)
	}
	return nil
}
