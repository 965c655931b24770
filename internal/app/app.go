// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/batchcrawl/internal/batch"
	"github.com/law-makers/batchcrawl/internal/cache"
	"github.com/law-makers/batchcrawl/internal/config"
	"github.com/law-makers/batchcrawl/internal/connpool"
	"github.com/law-makers/batchcrawl/internal/fetch"
	"github.com/law-makers/batchcrawl/internal/resource"
	"github.com/law-makers/batchcrawl/pkg/models"
)

// PageProcessor is the batch processor the CLI runs: URLs in, summaries out.
type PageProcessor = batch.Processor[string, *models.PageSummary]

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config    *config.Config
	Logger    *zerolog.Logger
	Sampler   *resource.Sampler
	Pool      *connpool.Pool
	Cache     *cache.MemoryCache[*models.PageSummary]
	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the resource sampler over the local host
//   - Creates the bounded connection pool (lazily dialing)
//   - Creates the page summary cache
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := NewLogger(cfg, os.Stderr)
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	sampler := resource.NewSampler(nil, resource.WithLogger(logger))

	pool := connpool.New(connpool.Options{
		MaxConns:        cfg.HTTP.MaxConns,
		MaxConnsPerHost: cfg.HTTP.MaxConnsPerHost,
		DNSCacheTTL:     cfg.HTTP.DNSCacheTTL,
		Timeout:         cfg.HTTP.Timeout,
		UserAgent:       cfg.HTTP.UserAgent,
		Proxies:         cfg.HTTP.Proxies,
		RateLimitRPS:    cfg.HTTP.RateLimitRPS,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		Logger:          &logger,
	})
	logger.Debug().
		Int("max_conns", cfg.HTTP.MaxConns).
		Int("max_conns_per_host", cfg.HTTP.MaxConnsPerHost).
		Float64("rps", cfg.HTTP.RateLimitRPS).
		Int("proxies", len(cfg.HTTP.Proxies)).
		Msg("Connection pool configured")

	memCache := cache.NewMemoryCache[*models.PageSummary](cfg.Cache.MaxEntries, cache.DefaultSweepInterval)
	logger.Debug().
		Int("max_entries", cfg.Cache.MaxEntries).
		Dur("ttl", cfg.Cache.TTL).
		Msg("Summary cache initialized")

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Sampler:   sampler,
		Pool:      pool,
		Cache:     memCache,
		startTime: time.Now(),
	}

	logger.Debug().Msg("Application initialized successfully")
	return app, nil
}

// NewLogger builds the process logger from cfg and installs it as the
// global zerolog logger.
func NewLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	logWriter := w
	if !cfg.JSONLog {
		logWriter = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// NewFetcher creates a fetch work function bound to the shared pool and cache.
func (a *Application) NewFetcher(opts models.FetchOptions) *fetch.Fetcher {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = a.Config.Cache.TTL
	}
	return fetch.New(a.Pool, a.Cache, opts, *a.Logger)
}

// NewProcessor creates a page processor running f over URLs with the
// configured strategy. Closing the processor releases the shared pool's
// idle connections; the pool stays usable.
func (a *Application) NewProcessor(f *fetch.Fetcher, opts ...batch.Option) (*PageProcessor, error) {
	return a.NewProcessorWithConfig(f, a.Config.Batch, opts...)
}

// NewProcessorWithConfig is NewProcessor with an explicit batch config.
func (a *Application) NewProcessorWithConfig(f *fetch.Fetcher, cfg batch.Config, opts ...batch.Option) (*PageProcessor, error) {
	work := batch.Instrument("fetch", batch.WorkFunc[string, *models.PageSummary](f.Fetch), *a.Logger)

	base := []batch.Option{
		batch.WithSampler(a.Sampler),
		batch.WithPool(a.Pool),
		batch.WithLogger(*a.Logger),
	}
	return batch.New(work, cfg, a.Config.ParsedStrategy(), append(base, opts...)...)
}

// Close gracefully shuts down the application and all its resources.
//
// It performs the following cleanup steps in order:
//   - Closes the connection pool
//   - Closes the cache
//
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.Pool != nil {
		m := a.Pool.Metrics()
		a.Logger.Debug().
			Int64("requests", m.TotalRequests).
			Int64("failed", m.FailedRequests).
			Dur("avg_response_time", m.AvgResponseTime).
			Msg("Connection pool stats")
		if err := a.Pool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing connection pool")
		}
	}

	if a.Cache != nil {
		stats := a.Cache.Stats()
		a.Logger.Debug().
			Int("entries", stats.Entries).
			Float64("hit_rate", stats.HitRate).
			Msg("Cache stats")
		a.Cache.Close()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
