// Package reqctx carries batch identity through contexts so work functions
// and log lines can be correlated with the ProcessBatch call that ran them.
package reqctx

import (
	"context"
	"fmt"
	"time"
)

type key int

const batchKey key = 0

// BatchContext identifies one ProcessBatch invocation.
type BatchContext struct {
	BatchID   string
	Chunk     int
	StartTime time.Time
}

// NewBatchID returns a timestamp-derived batch identifier.
func NewBatchID(now time.Time) string {
	return fmt.Sprintf("batch_%d", now.UnixNano())
}

// WithBatch attaches batch identity to ctx.
func WithBatch(ctx context.Context, batchID string, start time.Time) context.Context {
	return context.WithValue(ctx, batchKey, &BatchContext{
		BatchID:   batchID,
		Chunk:     -1,
		StartTime: start,
	})
}

// WithChunk derives a context tagged with the chunk index inside the batch.
func WithChunk(ctx context.Context, chunk int) context.Context {
	parent := FromContext(ctx)
	return context.WithValue(ctx, batchKey, &BatchContext{
		BatchID:   parent.BatchID,
		Chunk:     chunk,
		StartTime: parent.StartTime,
	})
}

// FromContext returns the batch identity on ctx, or an "unknown" placeholder.
func FromContext(ctx context.Context) *BatchContext {
	if ctx != nil {
		if bc, ok := ctx.Value(batchKey).(*BatchContext); ok {
			return bc
		}
	}
	return &BatchContext{
		BatchID:   "unknown",
		Chunk:     -1,
		StartTime: time.Now(),
	}
}

// BatchError wraps an error with the batch that produced it
type BatchError struct {
	BatchID string
	Err     error
}

// Error implements the error interface
func (e *BatchError) Error() string {
	return fmt.Sprintf("[%s] %v", e.BatchID, e.Err)
}

// Unwrap returns the underlying error
func (e *BatchError) Unwrap() error {
	return e.Err
}

// NewBatchError tags err with the batch ID found on ctx.
func NewBatchError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &BatchError{
		BatchID: FromContext(ctx).BatchID,
		Err:     err,
	}
}
