package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/batchcrawl/internal/reqctx"
)

// Instrument wraps work so every call is logged at debug level with its
// batch, chunk, duration and outcome. The wrapped function behaves exactly
// like work.
func Instrument[T, R any](name string, work WorkFunc[T, R], logger zerolog.Logger) WorkFunc[T, R] {
	return func(ctx context.Context, item T) (R, error) {
		start := time.Now()
		res, err := work(ctx, item)

		bc := reqctx.FromContext(ctx)
		logger.Debug().
			Str("func", name).
			Str("batch_id", bc.BatchID).
			Int("chunk", bc.Chunk).
			Dur("duration", time.Since(start)).
			Bool("ok", err == nil).
			AnErr("error", err).
			Msg("Work call finished")

		return res, err
	}
}
