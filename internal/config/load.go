package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "RHEOBENCH"

// keys lists every setting so that environment variables bind even when no
// config file mentions them.
var keys = []string{
	"log.level",
	"log.format",
	"grid.targets",
	"fit.max_iterations",
	"fit.tolerance",
	"fit.improvement_ratio",
	"fit.param_floor",
	"fit.max_index",
	"outliers.multiplier",
	"outliers.interactive",
	"aggregate.iqr_factor",
	"aggregate.min_group_size",
	"aggregate.bin_decimals",
	"store.path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("grid.targets", 15)
	v.SetDefault("fit.max_iterations", 500)
	v.SetDefault("fit.tolerance", 1e-10)
	v.SetDefault("fit.improvement_ratio", 0.5)
	v.SetDefault("fit.param_floor", 1e-9)
	v.SetDefault("fit.max_index", 5.0)
	v.SetDefault("outliers.multiplier", 3.0)
	v.SetDefault("outliers.interactive", false)
	v.SetDefault("aggregate.iqr_factor", 1.5)
	v.SetDefault("aggregate.min_group_size", 3)
	v.SetDefault("aggregate.bin_decimals", 1)
	v.SetDefault("store.path", "rheobench.db")
}

// Load reads configuration from defaults, the YAML file at path (skipped when
// path is empty) and RHEOBENCH_* environment variables, in increasing order of
// precedence. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
