package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/law-makers/batchcrawl/internal/resource"
)

func TestEffectiveBatchSize(t *testing.T) {
	tests := []struct {
		name     string
		base     int
		strategy Strategy
		cpu, mem float64
		adaptive bool
		want     int
	}{
		{"adaptive high cpu pressure", 50, StrategyAdaptive, 85, 50, true, 25},
		{"adaptive memory decides", 50, StrategyAdaptive, 30, 90, true, 25},
		{"adaptive floor", 12, StrategyAdaptive, 95, 10, true, 10},
		{"adaptive idle grows", 50, StrategyAdaptive, 10, 10, true, 75},
		{"adaptive ceiling", 150, StrategyAdaptive, 5, 5, true, 200},
		{"adaptive middle keeps base", 50, StrategyAdaptive, 50, 40, true, 50},
		{"balanced scales with factor", 50, StrategyBalanced, 50, 20, true, 50},
		{"balanced saturated", 50, StrategyBalanced, 100, 20, true, 25},
		{"conservative floor", 6, StrategyConservative, 100, 100, true, 5},
		{"aggressive idle", 100, StrategyAggressive, 0, 0, true, 150},
		{"sizing disabled", 50, StrategyAdaptive, 99, 99, false, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := resource.Snapshot{CPUPercent: tt.cpu, MemoryPercent: tt.mem}
			assert.Equal(t, tt.want, EffectiveBatchSize(1000, tt.base, tt.strategy, snap, tt.adaptive))
		})
	}
}

func TestResourceFactor_TakesTighterResource(t *testing.T) {
	assert.InDelta(t, 0.1, ResourceFactor(resource.Snapshot{CPUPercent: 30, MemoryPercent: 90}), 1e-9)
	assert.InDelta(t, 0.15, ResourceFactor(resource.Snapshot{CPUPercent: 85, MemoryPercent: 50}), 1e-9)
	assert.InDelta(t, 1.0, ResourceFactor(resource.Snapshot{}), 1e-9)
}

func TestEffectiveBatchSize_TighterResourceDecides(t *testing.T) {
	cpuOnly := resource.Snapshot{CPUPercent: 90, MemoryPercent: 10}
	both := resource.Snapshot{CPUPercent: 90, MemoryPercent: 90}

	for _, s := range Strategies {
		t.Run(string(s), func(t *testing.T) {
			assert.Equal(t,
				EffectiveBatchSize(1000, 50, s, both, true),
				EffectiveBatchSize(1000, 50, s, cpuOnly, true))
		})
	}
}

func TestSizer_NextSamplesOnce(t *testing.T) {
	src := resource.NewFixedSource(85, 50)
	sampler := testSampler(src, 1)
	sizer := NewSizer(sampler, StrategyAdaptive, 50, true)

	size, snap := sizer.Next(context.Background(), 100)
	assert.Equal(t, 25, size)
	assert.Equal(t, 85.0, snap.CPUPercent)
	assert.Equal(t, 1, sampler.WindowLen())

	src.Set(5, 5)
	size, _ = sizer.Next(context.Background(), 100)
	assert.Equal(t, 75, size)
}
