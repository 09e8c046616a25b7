package config

import (
	"os"
	"path/filepath"

	"github.com/yuanying/epubnorm/internal/converter"
)

// Default values
const (
	DefaultImageEnabled  = true
	DefaultMaxImageWidth = converter.DefaultMaxImageWidth
	DefaultJPEGQuality   = converter.DefaultJPEGQuality

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// ConfigName is the base name of the YAML config file.
	ConfigName = "epubnorm"
	// EnvPrefix prefixes environment overrides, e.g. EPUBNORM_IMAGE_MAX_WIDTH.
	EnvPrefix = "EPUBNORM"
)

// ConfigDir returns the per-user config directory
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".epubnorm"
	}
	return filepath.Join(dir, "epubnorm")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Image: ImageConfig{
			Enabled:     DefaultImageEnabled,
			MaxWidth:    DefaultMaxImageWidth,
			JPEGQuality: DefaultJPEGQuality,
		},
		Preserve: []string{},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ImageOptions converts the image settings for the converter.
func (c *Config) ImageOptions() converter.ImageOptions {
	return converter.ImageOptions{
		Enabled:     c.Image.Enabled,
		MaxWidth:    c.Image.MaxWidth,
		JPEGQuality: c.Image.JPEGQuality,
	}
}
