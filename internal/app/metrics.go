package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/law-makers/batchcrawl/internal/batch"
	"github.com/law-makers/batchcrawl/internal/connpool"
)

const metricsNamespace = "batchcrawl"

// NewRegistry returns a registry exporting the processor metrics, the
// connection pool counters and the Go runtime collector.
func NewRegistry(src batch.MetricsSource, pool *connpool.Pool) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	cs := []prometheus.Collector{
		batch.NewCollector(metricsNamespace, src),
		collectors.NewGoCollector(),
	}
	if pool != nil {
		cs = append(cs,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pool",
				Name:      "requests_total",
				Help:      "Requests issued through the connection pool.",
			}, func() float64 { return float64(pool.Metrics().TotalRequests) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pool",
				Name:      "requests_failed_total",
				Help:      "Requests that failed at the transport level.",
			}, func() float64 { return float64(pool.Metrics().FailedRequests) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "pool",
				Name:      "avg_response_seconds",
				Help:      "Mean request latency since the pool was created.",
			}, func() float64 { return pool.Metrics().AvgResponseTime.Seconds() }),
		)
	}

	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ServeMetrics serves reg on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
