package resource

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const bytesPerMB = 1024 * 1024

// MemoryStats is the host memory reading a Source reports.
type MemoryStats struct {
	UsedPercent float64
	UsedMB      float64
	AvailableMB float64
	TotalMB     float64
}

// Source reads host utilization. Implementations must be safe for
// concurrent use.
type Source interface {
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (MemoryStats, error)
}

// HostSource reads the local host through gopsutil.
type HostSource struct{}

// CPUPercent returns the host-wide CPU utilization since the previous call.
// It does not block; the first call after process start may report 0.
func (HostSource) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("read cpu percent: no data")
	}
	return pct[0], nil
}

// Memory returns host virtual memory statistics.
func (HostSource) Memory(ctx context.Context) (MemoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStats{}, fmt.Errorf("read virtual memory: %w", err)
	}
	return MemoryStats{
		UsedPercent: vm.UsedPercent,
		UsedMB:      float64(vm.Used) / bytesPerMB,
		AvailableMB: float64(vm.Available) / bytesPerMB,
		TotalMB:     float64(vm.Total) / bytesPerMB,
	}, nil
}

// HeapInUseMB reports the Go heap currently allocated by this process.
func HeapInUseMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / bytesPerMB
}

// OptimalConcurrency suggests a worker count for I/O bound fetching from the
// CPU count and the memory still available on the host.
func OptimalConcurrency(snap Snapshot) int {
	numCPU := runtime.NumCPU()

	// For I/O bound operations (scraping), use 3x CPU count
	optimal := numCPU * 3
	if optimal > 50 {
		optimal = 50
	}

	// Assume ~50MB of headroom per in-flight page
	maxByMemory := int(snap.MemoryAvailableMB / 50)
	if maxByMemory > 0 && maxByMemory < optimal {
		optimal = maxByMemory
	}
	if optimal < 1 {
		optimal = 1
	}
	return optimal
}
