package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "IDEMPROXY"

	cfgKeyDB         = "db"
	cfgKeyFormat     = "format"
	cfgKeyLogLevel   = "log_level"
	cfgKeyMaxPerType = "vid.max_per_type"

	defaultDB       = "idemproxy.db"
	defaultConfig   = "idemproxy"
	defaultLogLevel = "warn"
)

// Config is the resolved process configuration.
type Config struct {
	DB         string
	Format     string
	LogLevel   slog.Level
	MaxPerType uint64
}

// loadConfig reads the optional config file and IDEMPROXY_* environment
// variables. Explicitly set flags win over both. A missing config file is
// not an error unless it was named with --config.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDB, defaultDB)
	v.SetDefault(cfgKeyFormat, "text")
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyMaxPerType, uint64(0))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfig)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range []string{cfgKeyDB, cfgKeyFormat} {
			if f := flags.Lookup(key); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}

	cfg := &Config{
		DB:         v.GetString(cfgKeyDB),
		Format:     v.GetString(cfgKeyFormat),
		MaxPerType: v.GetUint64(cfgKeyMaxPerType),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(cfgKeyLogLevel))); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgKeyLogLevel, err)
	}
	return cfg, nil
}
