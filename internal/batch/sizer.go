package batch

import (
	"context"

	"github.com/law-makers/batchcrawl/internal/resource"
)

// Chunk size clamps.
const (
	minAdaptiveBatchSize = 10
	maxBatchSize         = 200
	minScaledBatchSize   = 5

	highPressureFactor = 0.2
	lowPressureFactor  = 0.8
)

// EffectiveBatchSize computes this round's chunk size from the base size and
// the current resource pressure. The tighter of CPU and memory decides; the
// two are never averaged. requested is informational only: the caller must
// not build chunks larger than what remains.
func EffectiveBatchSize(requested, base int, strategy Strategy, snap resource.Snapshot, adaptive bool) int {
	if !adaptive {
		return base
	}

	factor := ResourceFactor(snap)

	if strategy == StrategyAdaptive {
		switch {
		case factor < highPressureFactor:
			return max(minAdaptiveBatchSize, int(float64(base)*0.5))
		case factor > lowPressureFactor:
			return min(maxBatchSize, int(float64(base)*1.5))
		default:
			return base
		}
	}

	return max(minScaledBatchSize, int(float64(base)*(0.5+factor)))
}

// ResourceFactor is the free fraction of the more constrained resource.
func ResourceFactor(snap resource.Snapshot) float64 {
	cpuFactor := 1 - snap.CPUPercent/100
	memoryFactor := 1 - snap.MemoryPercent/100
	return min(cpuFactor, memoryFactor)
}

// Sizer binds EffectiveBatchSize to a sampler and a fixed strategy.
type Sizer struct {
	sampler  *resource.Sampler
	strategy Strategy
	base     int
	adaptive bool
}

// NewSizer creates a Sizer for the given operating parameters.
func NewSizer(sampler *resource.Sampler, strategy Strategy, base int, adaptive bool) *Sizer {
	return &Sizer{sampler: sampler, strategy: strategy, base: base, adaptive: adaptive}
}

// Next samples resources and returns the chunk size together with the
// snapshot it was computed from.
func (s *Sizer) Next(ctx context.Context, requested int) (int, resource.Snapshot) {
	snap := s.sampler.Sample(ctx)
	return EffectiveBatchSize(requested, s.base, s.strategy, snap, s.adaptive), snap
}
