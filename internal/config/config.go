// Package config defines the relay's immutable configuration: defaults,
// file loading, RELAY_ environment overrides, and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Spool     SpoolConfig     `mapstructure:"spool"`
	Retention RetentionConfig `mapstructure:"retention"`
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Simulate  SimulateConfig  `mapstructure:"simulate"`
}

type BufferConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type DispatchConfig struct {
	MaxEventsPerSecond int `mapstructure:"max_events_per_second"`
	FastWeight         int `mapstructure:"fast_weight"`
	SpoolWeight        int `mapstructure:"spool_weight"`
}

type SpoolConfig struct {
	Path          string        `mapstructure:"path"`
	Fsync         string        `mapstructure:"fsync"`
	FsyncInterval time.Duration `mapstructure:"fsync_interval"`
}

type RetentionConfig struct {
	MaxAge       time.Duration `mapstructure:"max_age"`
	MaxStorageMB int           `mapstructure:"max_storage_mb"`
}

// MaxStorageBytes returns the size cap in bytes.
func (c RetentionConfig) MaxStorageBytes() int64 {
	return int64(c.MaxStorageMB) << 20
}

type TransportConfig struct {
	Kind        string        `mapstructure:"kind"`
	URL         string        `mapstructure:"url"`
	Subject     string        `mapstructure:"subject"`
	Timeout     time.Duration `mapstructure:"timeout"`
	LossPercent int           `mapstructure:"loss_percent"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type SimulateConfig struct {
	RatePerSecond int `mapstructure:"rate_per_second"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Buffer: BufferConfig{Capacity: 5000},
		Dispatch: DispatchConfig{
			MaxEventsPerSecond: 500,
			FastWeight:         1,
			SpoolWeight:        1,
		},
		Spool: SpoolConfig{
			Path:          "./relay-data",
			Fsync:         "always",
			FsyncInterval: 5 * time.Millisecond,
		},
		Retention: RetentionConfig{
			MaxAge:       48 * time.Hour,
			MaxStorageMB: 100,
		},
		Transport: TransportConfig{
			Kind:    "stdout",
			Subject: "relay.events",
			Timeout: 5 * time.Second,
		},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Simulate: SimulateConfig{RatePerSecond: 1000},
	}
}

// Load builds the configuration from defaults, an optional config file, and
// RELAY_ environment overrides (RELAY_BUFFER_CAPACITY overrides
// buffer.capacity, and so on). The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("buffer.capacity", 5000)
	v.SetDefault("dispatch.max_events_per_second", 500)
	v.SetDefault("dispatch.fast_weight", 1)
	v.SetDefault("dispatch.spool_weight", 1)
	v.SetDefault("spool.path", "./relay-data")
	v.SetDefault("spool.fsync", "always")
	v.SetDefault("spool.fsync_interval", "5ms")
	v.SetDefault("retention.max_age", "48h")
	v.SetDefault("retention.max_storage_mb", 100)
	v.SetDefault("transport.kind", "stdout")
	v.SetDefault("transport.url", "")
	v.SetDefault("transport.subject", "relay.events")
	v.SetDefault("transport.timeout", "5s")
	v.SetDefault("transport.loss_percent", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("simulate.rate_per_second", 1000)
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	if c.Buffer.Capacity < 1 {
		return fmt.Errorf("buffer.capacity must be >= 1, got %d", c.Buffer.Capacity)
	}
	if c.Dispatch.MaxEventsPerSecond < 1 {
		return fmt.Errorf("dispatch.max_events_per_second must be >= 1, got %d", c.Dispatch.MaxEventsPerSecond)
	}
	if c.Dispatch.FastWeight < 1 || c.Dispatch.SpoolWeight < 1 {
		return fmt.Errorf("dispatch weights must be >= 1, got (%d,%d)", c.Dispatch.FastWeight, c.Dispatch.SpoolWeight)
	}
	if c.Spool.Path == "" {
		return fmt.Errorf("spool.path is required")
	}
	switch c.Spool.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("spool.fsync must be always, interval, or never; got %q", c.Spool.Fsync)
	}
	if c.Spool.Fsync == "interval" && c.Spool.FsyncInterval <= 0 {
		return fmt.Errorf("spool.fsync_interval must be positive when spool.fsync is interval")
	}
	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("retention.max_age must not be negative")
	}
	if c.Retention.MaxStorageMB < 0 {
		return fmt.Errorf("retention.max_storage_mb must not be negative")
	}
	switch c.Transport.Kind {
	case "stdout":
	case "http", "nats":
		if c.Transport.URL == "" {
			return fmt.Errorf("transport.url is required for kind %q", c.Transport.Kind)
		}
	default:
		return fmt.Errorf("transport.kind must be stdout, http, or nats; got %q", c.Transport.Kind)
	}
	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("transport.timeout must be positive")
	}
	if c.Transport.LossPercent < 0 || c.Transport.LossPercent > 100 {
		return fmt.Errorf("transport.loss_percent must be within [0,100], got %d", c.Transport.LossPercent)
	}
	if c.Simulate.RatePerSecond < 1 {
		return fmt.Errorf("simulate.rate_per_second must be >= 1, got %d", c.Simulate.RatePerSecond)
	}
	return nil
}
