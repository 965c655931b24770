package batch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMetrics Metrics

func (s staticMetrics) Metrics() Metrics { return Metrics(s) }

func TestCollector_ExportsEveryField(t *testing.T) {
	src := staticMetrics{
		TasksCompleted:      8,
		TasksFailed:         2,
		BatchesProcessed:    3,
		TotalProcessingTime: 2 * time.Second,
		SuccessRate:         0.8,
		ActiveConnections:   4,
	}
	c := NewCollector("batchcrawl", src)

	assert.Equal(t, 12, testutil.CollectAndCount(c))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 8.0, values["batchcrawl_batch_tasks_completed_total"])
	assert.Equal(t, 2.0, values["batchcrawl_batch_tasks_failed_total"])
	assert.Equal(t, 2.0, values["batchcrawl_batch_processing_seconds_total"])
	assert.Equal(t, 0.8, values["batchcrawl_batch_success_rate"])
	assert.Equal(t, 4.0, values["batchcrawl_batch_active_connections"])
}

func TestCollector_ReadsLiveProcessor(t *testing.T) {
	p := newTestProcessor(t, double, testConfig(), StrategyBalanced, nil)
	c := NewCollector("test", p)

	_, err := p.ProcessBatch(context.Background(), seq(5), "")
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(c, "test_batch_tasks_completed_total"))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "test_batch_tasks_completed_total" {
			assert.Equal(t, 5.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
