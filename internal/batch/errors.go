package batch

import (
	"errors"
	"fmt"
)

// Common processor errors
var (
	ErrProcessorClosed = errors.New("processor is closed")
	ErrNilWorkFunc     = errors.New("work function is nil")
	ErrInvalidConfig   = errors.New("invalid batch config")
	ErrChunkFailed     = errors.New("every item in chunk failed")
	ErrChunkPanicked   = errors.New("chunk panicked")
	ErrItemPanicked    = errors.New("work function panicked")
)

// Stage names where a batch-level failure happened.
type Stage string

const (
	StageAdmission Stage = "admission"
	StageSizing    Stage = "sizing"
	StageCancelled Stage = "cancelled"
)

// BatchError is a failure of the orchestration of one ProcessBatch call,
// as opposed to a failure of an individual item or chunk.
type BatchError struct {
	BatchID string
	Stage   Stage
	Err     error
}

// Error implements the error interface
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s: %s: %v", e.BatchID, e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *BatchError) Unwrap() error {
	return e.Err
}

// ItemError records why one item was dropped.
type ItemError struct {
	Index int // position in the batch
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// PanicError is a panic raised by the work function for one item. It is
// never retried.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrItemPanicked, e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrItemPanicked
}

// Permanent tells the retry classifier not to try again.
func (e *PanicError) Permanent() bool { return true }
