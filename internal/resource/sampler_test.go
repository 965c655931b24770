package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSampler(src Source, window time.Duration) (*Sampler, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSampler(src,
		WithWindow(window),
		WithClock(clock.now),
		WithHeapReader(func() float64 { return 12 }),
	)
	return s, clock
}

func TestSampler_SampleReportsReadings(t *testing.T) {
	s, _ := newTestSampler(NewFixedSource(40, 60), time.Minute)

	snap := s.Sample(context.Background())

	assert.Equal(t, 40.0, snap.CPUPercent)
	assert.Equal(t, 60.0, snap.MemoryPercent)
	assert.Equal(t, 40.0, snap.AvgCPU)
	assert.Equal(t, 60.0, snap.AvgMemory)
	assert.Equal(t, 12.0, snap.ProcessMemoryMB)
	assert.InDelta(t, 16*1024*0.6, snap.MemoryUsedMB, 0.001)
	assert.InDelta(t, 16*1024*0.4, snap.MemoryAvailableMB, 0.001)
}

func TestSampler_WindowAveragesAndEviction(t *testing.T) {
	src := NewFixedSource(10, 20)
	s, clock := newTestSampler(src, 30*time.Second)

	s.Sample(context.Background())
	clock.advance(10 * time.Second)
	src.Set(30, 40)
	snap := s.Sample(context.Background())

	assert.Equal(t, 20.0, snap.AvgCPU)
	assert.Equal(t, 30.0, snap.AvgMemory)
	assert.Equal(t, 2, s.WindowLen())

	// first reading falls out of the window
	clock.advance(25 * time.Second)
	src.Set(50, 50)
	snap = s.Sample(context.Background())

	assert.Equal(t, 2, s.WindowLen())
	assert.Equal(t, 40.0, snap.AvgCPU)
	assert.Equal(t, 45.0, snap.AvgMemory)
}

func TestSampler_FailureReturnsLastKnown(t *testing.T) {
	src := NewFixedSource(25, 35)
	s, clock := newTestSampler(src, time.Minute)

	first := s.Sample(context.Background())
	src.Fail(errors.New("procfs unavailable"))
	clock.advance(time.Second)

	second := s.Sample(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.WindowLen())
}

func TestSampler_FailureBeforeFirstSample(t *testing.T) {
	src := NewFixedSource(0, 0)
	src.Fail(errors.New("nope"))
	s, _ := newTestSampler(src, time.Minute)

	assert.Equal(t, Snapshot{}, s.Sample(context.Background()))
}

func TestSampler_ShouldThrottle(t *testing.T) {
	src := NewFixedSource(50, 50)
	s, _ := newTestSampler(src, time.Minute)

	assert.False(t, s.ShouldThrottle(context.Background(), 80, 80))

	src.Set(85, 50)
	assert.True(t, s.ShouldThrottle(context.Background(), 80, 80))

	src.Set(50, 95)
	assert.True(t, s.ShouldThrottle(context.Background(), 80, 80))

	// equal to the limit is not over it
	src.Set(80, 80)
	assert.False(t, s.ShouldThrottle(context.Background(), 80, 80))
}

func TestSeries_CapacityOverwritesOldest(t *testing.T) {
	r := newSeries(time.Hour, 3)
	base := time.Unix(0, 0)
	for i := 1; i <= 5; i++ {
		r.add(base.Add(time.Duration(i)*time.Second), float64(i))
	}

	require.Equal(t, 3, r.len())
	assert.Equal(t, 4.0, r.average())
}

func TestOptimalConcurrency(t *testing.T) {
	assert.Equal(t, 2, OptimalConcurrency(Snapshot{MemoryAvailableMB: 100}))
	assert.GreaterOrEqual(t, OptimalConcurrency(Snapshot{MemoryAvailableMB: 1 << 20}), 1)
	assert.LessOrEqual(t, OptimalConcurrency(Snapshot{MemoryAvailableMB: 1 << 20}), 50)
}
