// Package embedding defines the contract for converting text into
// fixed-dimension numeric vectors, plus the error type callers use to
// identify which input of a batch triggered a backend failure.
package embedding

import (
	"context"
	"fmt"
)

// Embedder converts text into embedding vectors. Implementations must return
// batch results in input order, and EmbedBatch is all-or-nothing: on error no
// partial results are returned and callers needing salvage retry per item.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the vector dimensionality, or 0 when it has not
	// been learned from the backend yet.
	Dimension() int
}

// Error is returned when the embedding backend fails. Index identifies the
// triggering input within a batch (0 for single-text calls, -1 when the
// failure is not attributable to one input).
type Error struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("embedding input %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("embedding: %v", e.Err)
}

// Unwrap returns the underlying backend error.
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as an embedding failure for the given input index.
func NewError(index int, err error) *Error {
	return &Error{Index: index, Err: err}
}
