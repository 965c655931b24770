package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/law-makers/batchcrawl/internal/connpool"
	"github.com/law-makers/batchcrawl/internal/reqctx"
	"github.com/law-makers/batchcrawl/internal/resource"
	"github.com/law-makers/batchcrawl/internal/retry"
)

// WorkFunc processes a single item. It may block, fail or panic; a panic
// drops only that item. It must return promptly once ctx is done:
// ProcessBatch waits for every started item before returning, so a work
// function that ignores ctx holds the call past ProcessingTimeout.
type WorkFunc[T, R any] func(ctx context.Context, item T) (R, error)

// State is the lifecycle state of a Processor.
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateClosed
)

// String returns the string representation of a processor state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Processor runs a WorkFunc over batches of items, splitting each batch into
// chunks sized from live resource pressure and running the chunks
// concurrently. Item and chunk failures are contained; only orchestration
// failures are returned to the caller.
type Processor[T, R any] struct {
	work     WorkFunc[T, R]
	cfg      Config
	strategy Strategy
	adaptive AdaptiveConfig

	sampler  *resource.Sampler
	sizer    *Sizer
	pool     *connpool.Pool
	logger   zerolog.Logger
	retryCfg retry.Config
	itemHook func(ok bool)

	gate      *semaphore.Weighted
	chunkGate *semaphore.Weighted
	breaker   *gobreaker.CircuitBreaker

	metrics  metricsRecorder
	inFlight atomic.Int64 // ProcessBatch calls past admission
	queued   atomic.Int64 // items of those calls
	closed   atomic.Bool
	closeMu  sync.Mutex
	now      func() time.Time
}

// Option configures a Processor.
type Option func(*options)

type options struct {
	sampler   *resource.Sampler
	pool      *connpool.Pool
	logger    *zerolog.Logger
	itemHook  func(ok bool)
	retryable func(error) bool
}

// WithSampler sets the resource sampler. Defaults to one over the local host.
func WithSampler(s *resource.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithPool hands the processor a connection pool; Close releases it.
func WithPool(p *connpool.Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithItemHook registers a callback invoked after every attempted item.
// It is called from chunk goroutines and must be safe for concurrent use.
func WithItemHook(fn func(ok bool)) Option {
	return func(o *options) { o.itemHook = fn }
}

// WithRetryClassifier decides which item errors are retried.
func WithRetryClassifier(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// New creates a Processor. The strategy is fixed for the processor's life.
func New[T, R any](work WorkFunc[T, R], cfg Config, strategy Strategy, opts ...Option) (*Processor[T, R], error) {
	if work == nil {
		return nil, ErrNilWorkFunc
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}
	if o.sampler == nil {
		o.sampler = resource.NewSampler(nil, resource.WithLogger(logger))
	}
	if o.pool == nil {
		o.pool = connpool.New(connpool.Options{Logger: &logger})
	}

	adaptive := DeriveAdaptiveConfig(cfg, strategy)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.RetryAttempts
	retryCfg.InitialBackoff = cfg.RetryBackoff
	retryCfg.Retryable = o.retryable
	retryCfg.Logger = &logger

	p := &Processor[T, R]{
		work:     work,
		cfg:      cfg,
		strategy: strategy,
		adaptive: adaptive,
		sampler:  o.sampler,
		sizer:    NewSizer(o.sampler, strategy, adaptive.BatchSize, cfg.AdaptiveSizing),
		pool:     o.pool,
		logger:   logger.With().Str("component", "batch").Str("strategy", string(strategy)).Logger(),
		retryCfg: retryCfg,
		itemHook: o.itemHook,
		gate:     semaphore.NewWeighted(int64(adaptive.MaxConcurrent)),
		now:      time.Now,
	}
	if cfg.MaxConcurrentChunks > 0 {
		p.chunkGate = semaphore.NewWeighted(int64(cfg.MaxConcurrentChunks))
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chunks",
		MaxRequests: 1,
		Timeout:     cfg.CircuitBreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreakerThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	p.logger.Debug().
		Int("batch_size", adaptive.BatchSize).
		Int("max_concurrent", adaptive.MaxConcurrent).
		Float64("cpu_limit", adaptive.CPULimit).
		Float64("memory_limit", adaptive.MemoryLimit).
		Bool("adaptive_sizing", cfg.AdaptiveSizing).
		Msg("Batch processor initialized")

	return p, nil
}

type chunkOutcome[R any] struct {
	results []R
	err     error
}

// ProcessBatch runs the work function over items and returns the results of
// the items that succeeded, in chunk order. An empty batchID is replaced by
// a timestamp-derived one.
//
// Failed items are logged and dropped; a failed chunk contributes nothing.
// When ProcessingTimeout expires the results gathered so far are returned
// with a nil error once every started item has returned. If ctx itself is cancelled the partial results are
// returned together with the context's error.
func (p *Processor[T, R]) ProcessBatch(ctx context.Context, items []T, batchID string) ([]R, error) {
	if p.closed.Load() {
		return nil, ErrProcessorClosed
	}
	if len(items) == 0 {
		return []R{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := p.now()
	if batchID == "" {
		batchID = reqctx.NewBatchID(start)
	}
	logger := p.logger.With().Str("batch_id", batchID).Logger()

	if err := p.gate.Acquire(ctx, 1); err != nil {
		logger.Error().Err(err).Int("items", len(items)).Msg("Batch admission failed")
		return nil, &BatchError{BatchID: batchID, Stage: StageAdmission, Err: err}
	}
	defer p.gate.Release(1)

	if p.closed.Load() {
		return nil, ErrProcessorClosed
	}

	p.inFlight.Add(1)
	p.queued.Add(int64(len(items)))
	defer func() {
		p.queued.Add(-int64(len(items)))
		p.inFlight.Add(-1)
	}()

	batchCtx, cancel := context.WithTimeout(ctx, p.cfg.ProcessingTimeout)
	defer cancel()
	batchCtx = reqctx.WithBatch(batchCtx, batchID, start)

	size, snap := p.sizer.Next(batchCtx, len(items))
	if size <= 0 {
		err := fmt.Errorf("computed chunk size %d", size)
		logger.Error().Err(err).Msg("Batch sizing failed")
		return nil, &BatchError{BatchID: batchID, Stage: StageSizing, Err: err}
	}
	chunks := splitChunks(items, size)

	logger.Debug().
		Int("items", len(items)).
		Int("chunk_size", size).
		Int("chunks", len(chunks)).
		Float64("cpu_percent", snap.CPUPercent).
		Float64("memory_percent", snap.MemoryPercent).
		Msg("Processing batch")

	outcomes := make([]chunkOutcome[R], len(chunks))
	var wg sync.WaitGroup

launch:
	for i, chunk := range chunks {
		if i > 0 && p.underPressure(batchCtx) {
			logger.Debug().
				Int("chunk", i).
				Dur("pause", p.cfg.ThrottlePause).
				Msg("Resource pressure, delaying next chunk")
			if !sleepContext(batchCtx, p.cfg.ThrottlePause) {
				break launch
			}
		}
		if batchCtx.Err() != nil {
			break launch
		}

		wg.Add(1)
		go func(idx int, chunk []T) {
			defer wg.Done()
			outcomes[idx] = p.runChunk(batchCtx, logger, idx, idx*size, chunk)
		}(i, chunk)
	}
	wg.Wait()

	results := make([]R, 0, len(items))
	for i, o := range outcomes {
		if o.err != nil {
			logger.Error().Err(o.err).Int("chunk", i).Msg("Chunk failed")
		}
		results = append(results, o.results...)
	}

	wall := p.now().Sub(start)
	timedOut := ctx.Err() == nil && errors.Is(batchCtx.Err(), context.DeadlineExceeded)

	p.metrics.record(batchOutcome{
		attempted:   len(items),
		succeeded:   len(results),
		wall:        wall,
		snapshot:    p.sampler.Last(),
		activeConns: p.pool.ActiveConnections(),
		queueSize:   p.queued.Load(),
		timedOut:    timedOut,
	}, p.now())

	ev := logger.Info()
	if timedOut {
		ev = logger.Warn().Dur("timeout", p.cfg.ProcessingTimeout)
	}
	ev.Int("items", len(items)).
		Int("succeeded", len(results)).
		Dur("duration", wall).
		Msg("Batch finished")

	if err := ctx.Err(); err != nil {
		return results, &BatchError{BatchID: batchID, Stage: StageCancelled, Err: err}
	}
	return results, nil
}

// runChunk processes one chunk through the circuit breaker. A panic outside
// the work function (an item hook, for instance) fails the whole chunk.
func (p *Processor[T, R]) runChunk(ctx context.Context, logger zerolog.Logger, idx, offset int, chunk []T) (out chunkOutcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			out = chunkOutcome[R]{err: fmt.Errorf("%w: %v", ErrChunkPanicked, r)}
		}
	}()

	if p.chunkGate != nil {
		if err := p.chunkGate.Acquire(ctx, 1); err != nil {
			return chunkOutcome[R]{err: fmt.Errorf("acquire chunk slot: %w", err)}
		}
		defer p.chunkGate.Release(1)
	}

	ctx = reqctx.WithChunk(ctx, idx)
	res, err := p.breaker.Execute(func() (interface{}, error) {
		results, attempted := p.processChunk(ctx, logger, idx, offset, chunk)
		if attempted > 0 && len(results) == 0 {
			return results, ErrChunkFailed
		}
		return results, nil
	})
	if err != nil {
		return chunkOutcome[R]{err: err}
	}
	return chunkOutcome[R]{results: res.([]R)}
}

// processChunk runs items one after another, dropping failures. It returns
// the successful results and how many items were attempted.
func (p *Processor[T, R]) processChunk(ctx context.Context, logger zerolog.Logger, idx, offset int, chunk []T) ([]R, int) {
	results := make([]R, 0, len(chunk))
	attempted := 0

	for j, item := range chunk {
		if j > 0 && !sleepContext(ctx, p.cfg.ItemDelay) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		attempted++
		res, err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) (R, error) {
			return p.callWork(ctx, item)
		})
		if err != nil {
			logger.Warn().
				Err(&ItemError{Index: offset + j, Err: err}).
				Int("chunk", idx).
				Msg("Item failed, dropping")
			p.notify(false)
			continue
		}
		results = append(results, res)
		p.notify(true)
	}
	return results, attempted
}

// callWork runs the work function once, turning a panic into a *PanicError.
func (p *Processor[T, R]) callWork(ctx context.Context, item T) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			res, err = zero, &PanicError{Value: r}
		}
	}()
	return p.work(ctx, item)
}

func (p *Processor[T, R]) notify(ok bool) {
	if p.itemHook != nil {
		p.itemHook(ok)
	}
}

// underPressure reports whether host CPU/memory or the process heap is over
// its limit. It samples, so it also feeds the averaging window.
func (p *Processor[T, R]) underPressure(ctx context.Context) bool {
	if p.sampler.ShouldThrottle(ctx, p.adaptive.CPULimit, p.adaptive.MemoryLimit) {
		return true
	}
	return p.sampler.Last().ProcessMemoryMB > float64(p.cfg.MemoryLimitMB)
}

// Metrics returns a snapshot of the processor's metrics. Safe to call while
// batches are running.
func (p *Processor[T, R]) Metrics() Metrics {
	return p.metrics.snapshot()
}

// State returns the current lifecycle state.
func (p *Processor[T, R]) State() State {
	switch {
	case p.closed.Load():
		return StateClosed
	case p.inFlight.Load() > 0:
		return StateProcessing
	default:
		return StateIdle
	}
}

// Pool returns the connection pool work functions should use.
func (p *Processor[T, R]) Pool() *connpool.Pool { return p.pool }

// Sampler returns the processor's resource sampler.
func (p *Processor[T, R]) Sampler() *resource.Sampler { return p.sampler }

// Strategy returns the strategy the processor was built with.
func (p *Processor[T, R]) Strategy() Strategy { return p.strategy }

// AdaptiveConfig returns the effective operating parameters.
func (p *Processor[T, R]) AdaptiveConfig() AdaptiveConfig { return p.adaptive }

// Close releases the connection pool. It is safe to call more than once and
// on a processor that never ran a batch. Later ProcessBatch calls fail with
// ErrProcessorClosed.
func (p *Processor[T, R]) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	if err := p.pool.Close(); err != nil {
		return fmt.Errorf("close connection pool: %w", err)
	}
	p.logger.Debug().Msg("Batch processor closed")
	return nil
}

func splitChunks[T any](items []T, size int) [][]T {
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// sleepContext waits for d or until ctx is done, reporting whether the full
// wait elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
