package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/mwpersist/internal/persistence"
	"github.com/Sumatoshi-tech/mwpersist/internal/revstats"
)

// Default configuration values, mirroring each package's own zero-means-
// default constants so a config file may set a value explicitly without the
// caller needing to import the owning package.
const (
	DefaultWindowSize     = persistence.DefaultWindowSize
	DefaultRevertRadius   = persistence.DefaultRevertRadius
	DefaultMinPersisted   = revstats.DefaultMinPersisted
	DefaultMinVisibleDays = revstats.DefaultMinVisibleDays
	DefaultMaxChars       = 2097152
	DefaultDiffEngineName = "whitespace"
	DefaultLogLevel       = "info"
)

// configName is the config file name without extension.
const configName = ".mwpersist"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for mwpersist settings.
const envPrefix = "MWPERSIST"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults. If
// configPath is non-empty it is used as the explicit --config file path.
// Otherwise the config file is searched in the working directory, ./config,
// and /etc/mwpersist. A missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/mwpersist")
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("diff_engine.name", DefaultDiffEngineName)

	viperCfg.SetDefault("persistence.window_size", DefaultWindowSize)
	viperCfg.SetDefault("persistence.revert_radius", DefaultRevertRadius)

	viperCfg.SetDefault("stats.min_persisted", DefaultMinPersisted)
	viperCfg.SetDefault("stats.min_visible_days", DefaultMinVisibleDays)

	viperCfg.SetDefault("ancillary.max_chars", DefaultMaxChars)

	viperCfg.SetDefault("observability.log_level", DefaultLogLevel)
}
