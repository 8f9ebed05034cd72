// Package config resolves the host process's initial provider
// endpoint/credential/retry/chunking/keepalive knobs from a YAML file and
// the environment, using Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the saraudio host process's environment-resolved settings.
// Tags map config file keys and environment variables via Viper.
type Config struct {
	Provider struct {
		Name     string `mapstructure:"name"`
		Endpoint  string `mapstructure:"endpoint"`
		APIKey    string `mapstructure:"api_key"`
		Language  string `mapstructure:"language"`
		Transport string `mapstructure:"transport"` // "stream" | "chunk" | "auto"
	} `mapstructure:"provider"`

	Retry struct {
		Enabled     bool    `mapstructure:"enabled"`
		MaxAttempts int     `mapstructure:"max_attempts"`
		BaseDelayMs int     `mapstructure:"base_delay_ms"`
		Factor      float64 `mapstructure:"factor"`
		MaxDelayMs  int     `mapstructure:"max_delay_ms"`
		JitterRatio float64 `mapstructure:"jitter_ratio"`
	} `mapstructure:"retry"`

	Chunking struct {
		IntervalMs    int `mapstructure:"interval_ms"`
		MinDurationMs int `mapstructure:"min_duration_ms"`
		OverlapMs     int `mapstructure:"overlap_ms"`
		MaxInFlight   int `mapstructure:"max_in_flight"`
		TimeoutMs     int `mapstructure:"timeout_ms"`
	} `mapstructure:"chunking"`

	Stream struct {
		KeepaliveIntervalMs int `mapstructure:"keepalive_interval_ms"`
		SendQueueBudgetMs   int `mapstructure:"send_queue_budget_ms"`
	} `mapstructure:"stream"`

	Controller struct {
		PreconnectBufferMs int  `mapstructure:"preconnect_buffer_ms"`
		FlushOnSegmentEnd  bool `mapstructure:"flush_on_segment_end"`
	} `mapstructure:"controller"`

	Logging struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"logging"`
}

// Cfg is the process-wide resolved configuration, populated by LoadConfig.
var Cfg Config

// LoadConfig reads configuration from a "config.yaml" searched across
// configPaths (plus the current directory and /etc/saraudio/), applies
// defaults, and overlays SARAUDIO_-prefixed environment variables.
func LoadConfig(configPaths ...string) error {
	v := viper.New()

	// Keys need a default (even empty) so Unmarshal picks up their
	// environment overrides when no config file sets them.
	v.SetDefault("provider.name", "")
	v.SetDefault("provider.endpoint", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.transport", "auto")
	v.SetDefault("provider.language", "en")

	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay_ms", 300)
	v.SetDefault("retry.factor", 2.0)
	v.SetDefault("retry.max_delay_ms", 10000)
	v.SetDefault("retry.jitter_ratio", 0.0)

	v.SetDefault("chunking.interval_ms", 3000)
	v.SetDefault("chunking.min_duration_ms", 1000)
	v.SetDefault("chunking.overlap_ms", 0)
	v.SetDefault("chunking.max_in_flight", 2)
	v.SetDefault("chunking.timeout_ms", 10000)

	v.SetDefault("stream.keepalive_interval_ms", 8000)
	v.SetDefault("stream.send_queue_budget_ms", 200)

	v.SetDefault("controller.preconnect_buffer_ms", 120)
	v.SetDefault("controller.flush_on_segment_end", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/saraudio/")
	v.AddConfigPath("$HOME/.saraudio")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SARAUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&Cfg); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return nil
}
