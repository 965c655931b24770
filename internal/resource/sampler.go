// Package resource samples host CPU and memory utilization and smooths the
// readings over a rolling time window.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWindow is the span of history the averages cover.
	DefaultWindow = 30 * time.Second
	// DefaultCapacity bounds each ring buffer regardless of sampling rate.
	DefaultCapacity = 256
)

// Snapshot is one utilization reading plus the window averages at that time.
type Snapshot struct {
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryPercent     float64   `json:"memory_percent"`
	MemoryAvailableMB float64   `json:"memory_available_mb"`
	MemoryUsedMB      float64   `json:"memory_used_mb"`
	AvgCPU            float64   `json:"avg_cpu"`
	AvgMemory         float64   `json:"avg_memory"`
	ProcessMemoryMB   float64   `json:"process_memory_mb"`
	Timestamp         time.Time `json:"timestamp"`
}

// Sampler polls a Source and keeps windowed CPU and memory history.
type Sampler struct {
	source Source
	heap   func() float64
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	cpu    *series
	memory *series
	last   Snapshot
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithWindow sets the averaging window.
func WithWindow(window time.Duration) Option {
	return func(s *Sampler) {
		if window > 0 {
			s.cpu.window = window
			s.memory.window = window
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithHeapReader replaces the process heap reader.
func WithHeapReader(heap func() float64) Option {
	return func(s *Sampler) { s.heap = heap }
}

// WithLogger sets the logger used for sampling failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler creates a sampler over src. A nil src reads the local host.
func NewSampler(src Source, opts ...Option) *Sampler {
	if src == nil {
		src = HostSource{}
	}
	s := &Sampler{
		source: src,
		heap:   HeapInUseMB,
		now:    time.Now,
		logger: log.Logger,
		cpu:    newSeries(DefaultWindow, DefaultCapacity),
		memory: newSeries(DefaultWindow, DefaultCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample takes a fresh reading, records it in the window and returns it.
// When the source fails the last known snapshot is returned instead; the
// caller never sees an error.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	if ctx == nil {
		ctx = context.Background()
	}

	cpuPct, cpuErr := s.source.CPUPercent(ctx)
	memStats, memErr := s.source.Memory(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cpuErr != nil || memErr != nil {
		s.logger.Warn().
			AnErr("cpu_error", cpuErr).
			AnErr("memory_error", memErr).
			Msg("Resource sampling failed, using last known snapshot")
		return s.last
	}

	now := s.now()
	s.cpu.add(now, cpuPct)
	s.memory.add(now, memStats.UsedPercent)

	s.last = Snapshot{
		CPUPercent:        cpuPct,
		MemoryPercent:     memStats.UsedPercent,
		MemoryAvailableMB: memStats.AvailableMB,
		MemoryUsedMB:      memStats.UsedMB,
		AvgCPU:            s.cpu.average(),
		AvgMemory:         s.memory.average(),
		ProcessMemoryMB:   s.heap(),
		Timestamp:         now,
	}
	return s.last
}

// ShouldThrottle takes a fresh sample and reports whether CPU or memory
// utilization is above its limit (both in percent).
func (s *Sampler) ShouldThrottle(ctx context.Context, cpuLimit, memoryLimit float64) bool {
	snap := s.Sample(ctx)
	return snap.CPUPercent > cpuLimit || snap.MemoryPercent > memoryLimit
}

// Last returns the most recent successful snapshot without sampling.
func (s *Sampler) Last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// WindowLen returns how many CPU readings are currently inside the window.
func (s *Sampler) WindowLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cpu.len()
}

type point struct {
	at    time.Time
	value float64
}

// series is a fixed-capacity ring buffer of timestamped readings whose
// entries expire after window.
type series struct {
	window time.Duration
	buf    []point
	head   int // index of the oldest entry
	size   int
}

func newSeries(window time.Duration, capacity int) *series {
	return &series{window: window, buf: make([]point, capacity)}
}

func (r *series) add(at time.Time, v float64) {
	r.evictBefore(at.Add(-r.window))

	if r.size == len(r.buf) {
		// full: overwrite the oldest
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
	r.buf[(r.head+r.size)%len(r.buf)] = point{at: at, value: v}
	r.size++
}

func (r *series) evictBefore(cutoff time.Time) {
	for r.size > 0 && r.buf[r.head].at.Before(cutoff) {
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
}

func (r *series) average() float64 {
	if r.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += r.buf[(r.head+i)%len(r.buf)].value
	}
	return sum / float64(r.size)
}

func (r *series) len() int { return r.size }
