package batch

import (
	"fmt"
	"strings"
)

// Strategy is a named operating profile that sets the batch size,
// concurrency and resource limits a Processor works with.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
	StrategyAdaptive     Strategy = "adaptive"
)

// Strategies lists every valid strategy.
var Strategies = []Strategy{StrategyConservative, StrategyBalanced, StrategyAggressive, StrategyAdaptive}

// ParseStrategy converts a name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyConservative, StrategyBalanced, StrategyAggressive, StrategyAdaptive:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q (must be conservative, balanced, aggressive, or adaptive)", ErrInvalidConfig, s)
	}
}

// Memory thresholds (percent of host memory) per strategy.
const (
	conservativeMemoryLimit = 70
	balancedMemoryLimit     = 80
	aggressiveMemoryLimit   = 90
	adaptiveMemoryLimit     = 85

	conservativeCPUCeiling = 60
	aggressiveCPUFloor     = 90
)

// AdaptiveConfig holds the operating parameters after strategy overrides.
type AdaptiveConfig struct {
	BatchSize     int
	MaxConcurrent int
	CPULimit      float64 // percent
	MemoryLimit   float64 // percent
}

// DeriveAdaptiveConfig applies the strategy's overrides to cfg.
func DeriveAdaptiveConfig(cfg Config, strategy Strategy) AdaptiveConfig {
	ac := AdaptiveConfig{
		BatchSize:     cfg.BatchSize,
		MaxConcurrent: cfg.MaxConcurrentBatches,
		CPULimit:      cfg.CPULimitPercent,
	}

	switch strategy {
	case StrategyConservative:
		ac.BatchSize = max(5, cfg.BatchSize/2)
		ac.MaxConcurrent = max(1, cfg.MaxConcurrentBatches/2)
		ac.CPULimit = min(cfg.CPULimitPercent, conservativeCPUCeiling)
		ac.MemoryLimit = conservativeMemoryLimit
	case StrategyAggressive:
		ac.BatchSize = min(maxBatchSize, cfg.BatchSize*2)
		ac.MaxConcurrent = cfg.MaxConcurrentBatches * 2
		ac.CPULimit = max(cfg.CPULimitPercent, aggressiveCPUFloor)
		ac.MemoryLimit = aggressiveMemoryLimit
	case StrategyAdaptive:
		ac.MemoryLimit = adaptiveMemoryLimit
	default:
		ac.MemoryLimit = balancedMemoryLimit
	}
	return ac
}
