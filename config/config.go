// Package config loads server configuration from an optional config.yml, the
// environment and defaults, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or
// environment variables.
type Config struct {
	Port                int           `mapstructure:"PORT"`
	DBPath              string        `mapstructure:"DB_PATH"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	NotifyChannelPrefix string        `mapstructure:"NOTIFY_CHANNEL_PREFIX"`
	SweepInterval       time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepEnabled        bool          `mapstructure:"SWEEP_ENABLED"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	AppEnv              string        `mapstructure:"APP_ENV"`
	AllowedOrigins      string        `mapstructure:"ALLOWED_ORIGINS"`
	PolicySeed          bool          `mapstructure:"POLICY_SEED"`
}

var defaults = map[string]any{
	"PORT":                  8080,
	"DB_PATH":               "licenses.db",
	"REDIS_URL":             "",
	"NOTIFY_CHANNEL_PREFIX": "licenses:employee",
	"SWEEP_INTERVAL":        "1h",
	"SWEEP_ENABLED":         true,
	"LOG_LEVEL":             "info",
	"APP_ENV":               "development",
	"ALLOWED_ORIGINS":       "http://localhost:5173,http://localhost:8080",
	"POLICY_SEED":           true,
}

// Load reads config.yml from the working directory or its parent when
// present. A missing file is not an error.
func Load() (*Config, error) {
	return load(viper.New(), ".", "..")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
