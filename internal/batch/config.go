package batch

import (
	"fmt"
	"time"
)

// Default configuration values
const (
	DefaultBatchSize               = 50
	DefaultMaxConcurrentBatches    = 5
	DefaultProcessingTimeout       = 300 * time.Second
	DefaultRetryAttempts           = 3
	DefaultRetryBackoff            = 200 * time.Millisecond
	DefaultMemoryLimitMB           = 1024
	DefaultCPULimitPercent         = 80.0
	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerCooldown  = 30 * time.Second
	DefaultItemDelay               = 100 * time.Millisecond
	DefaultThrottlePause           = time.Second
)

// Config controls how a Processor splits and schedules work.
type Config struct {
	// BatchSize is the base chunk size before adaptive sizing.
	BatchSize int `mapstructure:"batch_size"`
	// MaxConcurrentBatches bounds concurrent ProcessBatch calls.
	MaxConcurrentBatches int `mapstructure:"max_concurrent_batches"`
	// ProcessingTimeout is the deadline for one ProcessBatch call.
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
	// RetryAttempts is the total number of attempts per item.
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	// MemoryLimitMB is the Go heap budget; above it the processor throttles.
	MemoryLimitMB   int     `mapstructure:"memory_limit_mb"`
	CPULimitPercent float64 `mapstructure:"cpu_limit_percent"`
	AdaptiveSizing  bool    `mapstructure:"adaptive_sizing"`
	// CircuitBreakerThreshold is the number of consecutive failed chunks
	// after which further chunks are rejected until the cooldown passes.
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerCooldown  time.Duration `mapstructure:"circuit_breaker_cooldown"`
	// ItemDelay is the pause between two items of the same chunk.
	ItemDelay time.Duration `mapstructure:"item_delay"`
	// ThrottlePause is the pause before launching a chunk under pressure.
	ThrottlePause time.Duration `mapstructure:"throttle_pause"`
	// MaxConcurrentChunks caps running chunks across all batches of one
	// processor. 0 leaves chunk fan-out unbounded.
	MaxConcurrentChunks int `mapstructure:"max_concurrent_chunks"`
}

// DefaultConfig returns the default processing configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:               DefaultBatchSize,
		MaxConcurrentBatches:    DefaultMaxConcurrentBatches,
		ProcessingTimeout:       DefaultProcessingTimeout,
		RetryAttempts:           DefaultRetryAttempts,
		RetryBackoff:            DefaultRetryBackoff,
		MemoryLimitMB:           DefaultMemoryLimitMB,
		CPULimitPercent:         DefaultCPULimitPercent,
		AdaptiveSizing:          true,
		CircuitBreakerThreshold: DefaultCircuitBreakerThreshold,
		CircuitBreakerCooldown:  DefaultCircuitBreakerCooldown,
		ItemDelay:               DefaultItemDelay,
		ThrottlePause:           DefaultThrottlePause,
	}
}

// WithDefaults returns c with every zero field replaced by its default.
// AdaptiveSizing and MaxConcurrentChunks are taken as given.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxConcurrentBatches == 0 {
		c.MaxConcurrentBatches = d.MaxConcurrentBatches
	}
	if c.ProcessingTimeout == 0 {
		c.ProcessingTimeout = d.ProcessingTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.MemoryLimitMB == 0 {
		c.MemoryLimitMB = d.MemoryLimitMB
	}
	if c.CPULimitPercent == 0 {
		c.CPULimitPercent = d.CPULimitPercent
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = d.CircuitBreakerThreshold
	}
	if c.CircuitBreakerCooldown == 0 {
		c.CircuitBreakerCooldown = d.CircuitBreakerCooldown
	}
	return c
}

// Validate checks that every limit is usable.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be > 0", ErrInvalidConfig)
	case c.MaxConcurrentBatches <= 0:
		return fmt.Errorf("%w: max concurrent batches must be > 0", ErrInvalidConfig)
	case c.ProcessingTimeout <= 0:
		return fmt.Errorf("%w: processing timeout must be > 0", ErrInvalidConfig)
	case c.RetryAttempts <= 0:
		return fmt.Errorf("%w: retry attempts must be > 0", ErrInvalidConfig)
	case c.MemoryLimitMB <= 0:
		return fmt.Errorf("%w: memory limit must be > 0", ErrInvalidConfig)
	case c.CPULimitPercent <= 0 || c.CPULimitPercent > 100:
		return fmt.Errorf("%w: cpu limit must be in (0, 100]", ErrInvalidConfig)
	case c.CircuitBreakerThreshold <= 0:
		return fmt.Errorf("%w: circuit breaker threshold must be > 0", ErrInvalidConfig)
	case c.RetryBackoff < 0, c.CircuitBreakerCooldown < 0, c.ItemDelay < 0, c.ThrottlePause < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.MaxConcurrentChunks < 0:
		return fmt.Errorf("%w: max concurrent chunks must not be negative", ErrInvalidConfig)
	}
	return nil
}
