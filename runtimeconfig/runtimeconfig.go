// Package runtimeconfig loads optional runtime-wide tuning defaults —
// default call timeout, default budget ceilings, demux pump buffer size —
// from a YAML file with an environment-specific overlay, the way the
// teacher's pkg/config.Load merges a base file with an env override and
// viper.AutomaticEnv(). This is ambient tuning for the optional demo
// binary; the library's own constructors take explicit parameters and never
// consult this package themselves.
package runtimeconfig

import (
	"fmt"

	"github.com/spf13/viper"

	"isocore/internal/envutil"
	"isocore/internal/errutil"
)

// Config is the unified runtime tuning surface. It mirrors the structure of
// the YAML files Load reads from a config/ directory relative to the
// working directory.
type Config struct {
	Client struct {
		DefaultTimeoutMS int `mapstructure:"default_timeout_ms" json:"default_timeout_ms"`
	} `mapstructure:"client" json:"client"`

	Budget struct {
		MaxMemoryBytes uint64 `mapstructure:"max_memory_bytes" json:"max_memory_bytes"`
		MaxTableElems  uint64 `mapstructure:"max_table_elems" json:"max_table_elems"`
		MaxInstances   uint64 `mapstructure:"max_instances" json:"max_instances"`
		MaxExecCost    uint64 `mapstructure:"max_exec_cost" json:"max_exec_cost"`
	} `mapstructure:"budget" json:"budget"`

	Transport struct {
		PumpBufferSize int    `mapstructure:"pump_buffer_size" json:"pump_buffer_size"`
		ListenAddr     string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"transport" json:"transport"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the base config file and merges any environment-specific
// override, then overlays matching environment variables. If env is empty,
// only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, errutil.Wrap(err, "load runtime config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, errutil.Wrap(err, fmt.Sprintf("merge %s runtime config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, errutil.Wrap(err, "unmarshal runtime config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ISOCORE_ENV environment
// variable to pick the overlay file.
func LoadFromEnv() (*Config, error) {
	return Load(envutil.EnvOrDefault("ISOCORE_ENV", ""))
}

// Defaults returns a Config populated with the library's own built-in
// defaults, for callers that want sane tuning without touching a file or
// the environment at all.
func Defaults() *Config {
	var c Config
	c.Client.DefaultTimeoutMS = 30_000
	c.Transport.PumpBufferSize = 64
	c.Transport.ListenAddr = "/ip4/0.0.0.0/tcp/0"
	c.Logging.Level = "info"
	return &c
}
