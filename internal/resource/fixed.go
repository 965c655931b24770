package resource

import (
	"context"
	"sync"
)

// FixedSource reports readings set by the caller. It backs what-if sizing
// in the CLI and deterministic tests.
type FixedSource struct {
	mu     sync.Mutex
	cpu    float64
	memory MemoryStats
	err    error
}

// NewFixedSource returns a source that always reports the given percentages.
func NewFixedSource(cpuPercent, memoryPercent float64) *FixedSource {
	f := &FixedSource{}
	f.Set(cpuPercent, memoryPercent)
	return f
}

// Set changes the reported CPU and memory percentages.
func (f *FixedSource) Set(cpuPercent, memoryPercent float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const totalMB = 16 * 1024
	f.cpu = cpuPercent
	f.memory = MemoryStats{
		UsedPercent: memoryPercent,
		UsedMB:      totalMB * memoryPercent / 100,
		AvailableMB: totalMB * (100 - memoryPercent) / 100,
		TotalMB:     totalMB,
	}
}

// Fail makes subsequent reads return err; nil restores normal readings.
func (f *FixedSource) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FixedSource) CPUPercent(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.cpu, nil
}

func (f *FixedSource) Memory(context.Context) (MemoryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return MemoryStats{}, f.err
	}
	return f.memory, nil
}
