package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/law-makers/batchcrawl/internal/batch"
	"github.com/law-makers/batchcrawl/internal/connpool"
)

// Default constants for application configuration
const (
	DefaultLogLevel        = "warn"
	DefaultJSONLog         = false
	DefaultStrategy        = string(batch.StrategyAdaptive)
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 4096
	DefaultRateLimitRPS    = 5.0
	DefaultRateLimitBurst  = 10
	DefaultMaxBodyMB       = 10
	DefaultShutdownTimeout = 10 * time.Second
)

// EnvPrefix prefixes every environment override, e.g. BATCHCRAWL_BATCH_BATCH_SIZE.
const EnvPrefix = "BATCHCRAWL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("json_log", DefaultJSONLog)
	v.SetDefault("strategy", DefaultStrategy)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	b := batch.DefaultConfig()
	v.SetDefault("batch.batch_size", b.BatchSize)
	v.SetDefault("batch.max_concurrent_batches", b.MaxConcurrentBatches)
	v.SetDefault("batch.processing_timeout", b.ProcessingTimeout)
	v.SetDefault("batch.retry_attempts", b.RetryAttempts)
	v.SetDefault("batch.retry_backoff", b.RetryBackoff)
	v.SetDefault("batch.memory_limit_mb", b.MemoryLimitMB)
	v.SetDefault("batch.cpu_limit_percent", b.CPULimitPercent)
	v.SetDefault("batch.adaptive_sizing", b.AdaptiveSizing)
	v.SetDefault("batch.circuit_breaker_threshold", b.CircuitBreakerThreshold)
	v.SetDefault("batch.circuit_breaker_cooldown", b.CircuitBreakerCooldown)
	v.SetDefault("batch.item_delay", b.ItemDelay)
	v.SetDefault("batch.throttle_pause", b.ThrottlePause)
	v.SetDefault("batch.max_concurrent_chunks", b.MaxConcurrentChunks)

	p := connpool.DefaultOptions()
	v.SetDefault("http.timeout", p.Timeout)
	v.SetDefault("http.user_agent", p.UserAgent)
	v.SetDefault("http.proxies", []string{})
	v.SetDefault("http.max_conns", p.MaxConns)
	v.SetDefault("http.max_conns_per_host", p.MaxConnsPerHost)
	v.SetDefault("http.dns_cache_ttl", p.DNSCacheTTL)
	v.SetDefault("http.rate_limit_rps", DefaultRateLimitRPS)
	v.SetDefault("http.rate_limit_burst", DefaultRateLimitBurst)

	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.max_entries", DefaultCacheMaxEntries)
}
