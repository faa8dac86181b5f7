// Package config loads daemon settings from an optional TOML file with
// AJIASU_* environment variables layered on top. Environment wins over the
// file; defaults fill the rest.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/ajiasud/internal/logger"
	"github.com/loykin/ajiasud/internal/supervisor"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8787

	// RotateIntervalFloor is the minimum accepted rotation interval;
	// anything lower is clamped up to it.
	RotateIntervalFloor   = 300 * time.Second
	DefaultRotateInterval = 12 * time.Hour
)

// Config is the resolved daemon configuration.
type Config struct {
	Bin  string `mapstructure:"bin"`
	Dir  string `mapstructure:"dir"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	Autoswitch         bool          `mapstructure:"autoswitch"`
	AutoswitchInterval time.Duration `mapstructure:"-"`
	HealBackoff        time.Duration `mapstructure:"-"`

	HistoryDSN string `mapstructure:"history_dsn"`

	LogFile  string        `mapstructure:"log_file"`
	LogDebug bool          `mapstructure:"log_debug"`
	ChildLog logger.Config `mapstructure:"child_log"`
}

// Load reads path (when non-empty) as TOML, binds the AJIASU_* environment,
// applies defaults, and clamps durations to their floors.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("autoswitch", false)
	v.SetDefault("autoswitch_interval", DefaultRotateInterval)
	v.SetDefault("autoconnect_backoff", supervisor.DefaultHealBackoff)

	v.SetEnvPrefix("AJIASU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"bin", "dir", "host", "port",
		"autoswitch", "autoswitch_interval", "autoconnect_backoff",
		"history_dsn", "log_file", "log_debug",
	} {
		_ = v.BindEnv(key)
	}
	// legacy seconds-valued variable names
	_ = v.BindEnv("autoswitch_interval", "AJIASU_AUTOSWITCH_SEC")
	_ = v.BindEnv("autoconnect_backoff", "AJIASU_AUTOCONNECT_BACKOFF")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var err error
	if cfg.AutoswitchInterval, err = flexDuration(v.GetString("autoswitch_interval")); err != nil {
		return Config{}, fmt.Errorf("autoswitch_interval: %w", err)
	}
	if cfg.HealBackoff, err = flexDuration(v.GetString("autoconnect_backoff")); err != nil {
		return Config{}, fmt.Errorf("autoconnect_backoff: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// flexDuration accepts Go duration syntax ("45m") or a bare number of
// seconds ("600"), the latter for the legacy environment variables.
func flexDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// normalize fills defaults and applies floors.
func (c *Config) normalize() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.AutoswitchInterval <= 0 {
		c.AutoswitchInterval = DefaultRotateInterval
	}
	if c.AutoswitchInterval < RotateIntervalFloor {
		c.AutoswitchInterval = RotateIntervalFloor
	}
	if c.HealBackoff <= 0 {
		c.HealBackoff = supervisor.DefaultHealBackoff
	}
}
