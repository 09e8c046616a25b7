package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// New returns a viper instance holding defaults, the config file and
// EPUBNORM_* environment variables. configFile may be empty, in which case
// epubnorm.yaml is looked up in the working directory and ConfigDir; a
// missing file is not an error then.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load unmarshals and validates the configuration held by v. Flags bound
// to v with BindPFlag take precedence over every other source.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("image.enabled", DefaultImageEnabled)
	v.SetDefault("image.max_width", DefaultMaxImageWidth)
	v.SetDefault("image.jpeg_quality", DefaultJPEGQuality)

	v.SetDefault("preserve", []string{})

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}
