package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/law-makers/batchcrawl/internal/batch"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level"`
	JSONLog  bool   `mapstructure:"json_log"`

	// Processing
	Strategy string       `mapstructure:"strategy"`
	Batch    batch.Config `mapstructure:"batch"`

	HTTP  HTTPConfig  `mapstructure:"http"`
	Cache CacheConfig `mapstructure:"cache"`

	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9090".
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HTTPConfig configures the shared connection pool.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	Proxies         []string      `mapstructure:"proxies"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"`
	DNSCacheTTL     time.Duration `mapstructure:"dns_cache_ttl"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// CacheConfig configures the page summary cache. A negative TTL disables it.
type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// ParsedStrategy returns Strategy as a batch.Strategy. Load has already
// validated it.
func (c *Config) ParsedStrategy() batch.Strategy {
	s, _ := batch.ParseStrategy(c.Strategy)
	return s
}

// flagKeys maps CLI flags onto configuration keys.
var flagKeys = map[string]string{
	"json":          "json_log",
	"strategy":      "strategy",
	"batch-size":    "batch.batch_size",
	"max-batches":   "batch.max_concurrent_batches",
	"batch-timeout": "batch.processing_timeout",
	"retries":       "batch.retry_attempts",
	"item-delay":    "batch.item_delay",
	"memory-limit":  "batch.memory_limit_mb",
	"cpu-limit":     "batch.cpu_limit_percent",
	"timeout":       "http.timeout",
	"user-agent":    "http.user_agent",
	"proxy":         "http.proxies",
	"rps":           "http.rate_limit_rps",
	"metrics-addr":  "metrics_addr",
}

// Load builds a Config by combining defaults, an optional config file,
// BATCHCRAWL_* environment variables, and CLI flags, in increasing order
// of precedence. Caller should pass the executing *cobra.Command so its
// flags can be read; nil skips the file and flags.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}

		for name, key := range flagKeys {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}

		if f := cmd.Flags().Lookup("no-adaptive"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("batch.adaptive_sizing", false)
		}
		if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
			v.Set("log_level", "debug")
		}
		if f := cmd.Flags().Lookup("quiet"); f != nil && f.Value.String() == "true" {
			v.Set("log_level", "error")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
