package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies {
		got, err := ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStrategy("  Aggressive ")
	require.NoError(t, err)
	assert.Equal(t, StrategyAggressive, got)

	_, err = ParseStrategy("turbo")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDeriveAdaptiveConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		strategy Strategy
		want     AdaptiveConfig
	}{
		{StrategyConservative, AdaptiveConfig{BatchSize: 25, MaxConcurrent: 2, CPULimit: 60, MemoryLimit: 70}},
		{StrategyBalanced, AdaptiveConfig{BatchSize: 50, MaxConcurrent: 5, CPULimit: 80, MemoryLimit: 80}},
		{StrategyAggressive, AdaptiveConfig{BatchSize: 100, MaxConcurrent: 10, CPULimit: 90, MemoryLimit: 90}},
		{StrategyAdaptive, AdaptiveConfig{BatchSize: 50, MaxConcurrent: 5, CPULimit: 80, MemoryLimit: 85}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveAdaptiveConfig(cfg, tt.strategy))
		})
	}
}

func TestDeriveAdaptiveConfig_Clamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 6
	cfg.MaxConcurrentBatches = 1
	cfg.CPULimitPercent = 40

	ac := DeriveAdaptiveConfig(cfg, StrategyConservative)
	assert.Equal(t, 5, ac.BatchSize)
	assert.Equal(t, 1, ac.MaxConcurrent)
	assert.Equal(t, 40.0, ac.CPULimit)

	cfg.BatchSize = 150
	cfg.CPULimitPercent = 95
	ac = DeriveAdaptiveConfig(cfg, StrategyAggressive)
	assert.Equal(t, 200, ac.BatchSize)
	assert.Equal(t, 95.0, ac.CPULimit)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := map[string]func(*Config){
		"batch size":      func(c *Config) { c.BatchSize = 0 },
		"concurrency":     func(c *Config) { c.MaxConcurrentBatches = -1 },
		"timeout":         func(c *Config) { c.ProcessingTimeout = 0 },
		"retry attempts":  func(c *Config) { c.RetryAttempts = 0 },
		"memory limit":    func(c *Config) { c.MemoryLimitMB = 0 },
		"cpu limit":       func(c *Config) { c.CPULimitPercent = 120 },
		"breaker":         func(c *Config) { c.CircuitBreakerThreshold = 0 },
		"negative delay":  func(c *Config) { c.ItemDelay = -time.Millisecond },
		"negative chunks": func(c *Config) { c.MaxConcurrentChunks = -2 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{BatchSize: 10, ItemDelay: 0}.WithDefaults()

	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, DefaultMaxConcurrentBatches, cfg.MaxConcurrentBatches)
	assert.Equal(t, DefaultProcessingTimeout, cfg.ProcessingTimeout)
	assert.Equal(t, DefaultCircuitBreakerThreshold, cfg.CircuitBreakerThreshold)
	assert.Equal(t, time.Duration(0), cfg.ItemDelay)
	assert.False(t, cfg.AdaptiveSizing)
	require.NoError(t, cfg.Validate())
}
