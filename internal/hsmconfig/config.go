// Package hsmconfig loads configuration for the hsmctl host binary.
//
// The hsm interpreter itself never reads global configuration — hsm.New
// takes explicit Options, per the interpreter's own design. This package only
// configures the surrounding host process: the devtools bridge, the optional
// bus-backed observer, and logging.
package hsmconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for an hsmctl host process.
type Config struct {
	Devtools DevtoolsConfig `mapstructure:"devtools"`
	Bus      BusConfig      `mapstructure:"bus"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DevtoolsConfig holds the devtools inspector bridge's HTTP/WebSocket configuration.
type DevtoolsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // seconds
}

// BusConfig holds the optional external observer bus configuration.
// An empty URL means use the in-memory bus; a non-empty URL connects to NATS.
type BusConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	Subject       string `mapstructure:"subject"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the devtools read timeout as a time.Duration.
func (d *DevtoolsConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(d.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the devtools write timeout as a time.Duration.
func (d *DevtoolsConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(d.WriteTimeout) * time.Second
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("devtools.enabled", true)
	v.SetDefault("devtools.host", "0.0.0.0")
	v.SetDefault("devtools.port", 8090)
	v.SetDefault("devtools.readTimeout", 10)
	v.SetDefault("devtools.writeTimeout", 10)

	v.SetDefault("bus.url", "")
	v.SetDefault("bus.clientId", "hsm-client")
	v.SetDefault("bus.subject", "hsm.transitions")
	v.SetDefault("bus.maxReconnects", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix HSM_ with snake_case naming.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("HSM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("devtools.port", "HSM_DEVTOOLS_PORT")
	_ = v.BindEnv("bus.url", "HSM_BUS_URL")
	_ = v.BindEnv("logging.level", "HSM_LOG_LEVEL")

	v.SetConfigName("hsm")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hsm/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that configuration fields are within acceptable ranges.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Devtools.Enabled {
		if cfg.Devtools.Port <= 0 || cfg.Devtools.Port > 65535 {
			errs = append(errs, "devtools.port must be between 1 and 65535")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text, console")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
