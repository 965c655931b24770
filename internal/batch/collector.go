package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSource is anything that can report processor metrics.
type MetricsSource interface {
	Metrics() Metrics
}

// Collector exports a processor's Metrics to Prometheus. Values are read
// from the source on every scrape.
type Collector struct {
	src MetricsSource

	tasksCompleted   *prometheus.Desc
	tasksFailed      *prometheus.Desc
	batchesProcessed *prometheus.Desc
	batchesTimedOut  *prometheus.Desc
	processingTime   *prometheus.Desc
	avgTaskDuration  *prometheus.Desc
	successRate      *prometheus.Desc
	throughput       *prometheus.Desc
	memoryUsage      *prometheus.Desc
	cpuUsage         *prometheus.Desc
	activeConns      *prometheus.Desc
	queueSize        *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector whose metric names start with namespace.
func NewCollector(namespace string, src MetricsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "batch", name), help, nil, nil)
	}
	return &Collector{
		src:              src,
		tasksCompleted:   desc("tasks_completed_total", "Items processed successfully."),
		tasksFailed:      desc("tasks_failed_total", "Items dropped after failing or not completing."),
		batchesProcessed: desc("batches_processed_total", "ProcessBatch calls that ran."),
		batchesTimedOut:  desc("batches_timed_out_total", "ProcessBatch calls that hit the processing timeout."),
		processingTime:   desc("processing_seconds_total", "Wall time spent in ProcessBatch."),
		avgTaskDuration:  desc("avg_task_duration_seconds", "Total processing time divided by items seen."),
		successRate:      desc("success_rate", "Completed items over all items seen."),
		throughput:       desc("throughput_per_second", "Items per second of the most recent batch."),
		memoryUsage:      desc("memory_usage_mb", "Go heap in use at the end of the most recent batch."),
		cpuUsage:         desc("cpu_usage_percent", "Host CPU utilization at the most recent sample."),
		activeConns:      desc("active_connections", "Requests in flight on the connection pool."),
		queueSize:        desc("queue_size", "Items admitted into in-flight batches, including the most recent one, when it finished."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()

	ch <- prometheus.MustNewConstMetric(c.tasksCompleted, prometheus.CounterValue, float64(m.TasksCompleted))
	ch <- prometheus.MustNewConstMetric(c.tasksFailed, prometheus.CounterValue, float64(m.TasksFailed))
	ch <- prometheus.MustNewConstMetric(c.batchesProcessed, prometheus.CounterValue, float64(m.BatchesProcessed))
	ch <- prometheus.MustNewConstMetric(c.batchesTimedOut, prometheus.CounterValue, float64(m.BatchesTimedOut))
	ch <- prometheus.MustNewConstMetric(c.processingTime, prometheus.CounterValue, m.TotalProcessingTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.avgTaskDuration, prometheus.GaugeValue, m.AvgTaskDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, m.SuccessRate)
	ch <- prometheus.MustNewConstMetric(c.throughput, prometheus.GaugeValue, m.ThroughputPerSecond)
	ch <- prometheus.MustNewConstMetric(c.memoryUsage, prometheus.GaugeValue, m.MemoryUsageMB)
	ch <- prometheus.MustNewConstMetric(c.cpuUsage, prometheus.GaugeValue, m.CPUUsagePercent)
	ch <- prometheus.MustNewConstMetric(c.activeConns, prometheus.GaugeValue, float64(m.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(m.QueueSize))
}

func (c *Collector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.tasksCompleted, c.tasksFailed, c.batchesProcessed, c.batchesTimedOut,
		c.processingTime, c.avgTaskDuration, c.successRate, c.throughput,
		c.memoryUsage, c.cpuUsage, c.activeConns, c.queueSize,
	}
}
