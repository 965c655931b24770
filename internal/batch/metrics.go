package batch

import (
	"sync"
	"time"

	"github.com/law-makers/batchcrawl/internal/resource"
)

// Metrics is a snapshot of a processor's cumulative counters and the most
// recent derived rates. Counters never decrease for the life of a processor.
type Metrics struct {
	TasksCompleted      int64         `json:"tasks_completed"`
	TasksFailed         int64         `json:"tasks_failed"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	AvgTaskDuration     time.Duration `json:"avg_task_duration"`
	SuccessRate         float64       `json:"success_rate"`
	ThroughputPerSecond float64       `json:"throughput_per_second"` // of the last batch
	MemoryUsageMB       float64       `json:"memory_usage_mb"`
	CPUUsagePercent     float64       `json:"cpu_usage_percent"`
	ActiveConnections   int64         `json:"active_connections"`
	QueueSize           int64         `json:"queue_size"`
	BatchesProcessed    int64         `json:"batches_processed"`
	BatchesTimedOut     int64         `json:"batches_timed_out"`
	LastUpdated         time.Time     `json:"last_updated"`
}

// batchOutcome is what one ProcessBatch call contributes to Metrics.
type batchOutcome struct {
	attempted   int
	succeeded   int
	wall        time.Duration
	snapshot    resource.Snapshot
	activeConns int64
	queueSize   int64
	timedOut    bool
}

// metricsRecorder owns the Metrics of one processor. Composite fields are
// derived under the same lock as the counters they depend on.
type metricsRecorder struct {
	mu sync.RWMutex
	m  Metrics
}

func (r *metricsRecorder) record(o batchOutcome, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	failed := o.attempted - o.succeeded
	if failed < 0 {
		failed = 0
	}

	r.m.TasksCompleted += int64(o.succeeded)
	r.m.TasksFailed += int64(failed)
	r.m.TotalProcessingTime += o.wall
	r.m.BatchesProcessed++
	if o.timedOut {
		r.m.BatchesTimedOut++
	}

	if total := r.m.TasksCompleted + r.m.TasksFailed; total > 0 {
		r.m.AvgTaskDuration = r.m.TotalProcessingTime / time.Duration(total)
		r.m.SuccessRate = float64(r.m.TasksCompleted) / float64(total)
	}
	if secs := o.wall.Seconds(); secs > 0 {
		r.m.ThroughputPerSecond = float64(o.attempted) / secs
	}

	r.m.MemoryUsageMB = o.snapshot.ProcessMemoryMB
	r.m.CPUUsagePercent = o.snapshot.CPUPercent
	r.m.ActiveConnections = o.activeConns
	r.m.QueueSize = o.queueSize
	r.m.LastUpdated = now
}

func (r *metricsRecorder) snapshot() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m
}
