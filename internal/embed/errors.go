package embed

import (
	"errors"
	"fmt"
)

// Sentinel errors for embedding generation.
var (
	// ErrEmbeddingFailed indicates a batch could not be embedded after
	// exhausting retries, or the provider returned an unusable response.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrInvalidOptions indicates Options or Batcher construction arguments
	// are unusable.
	ErrInvalidOptions = errors.New("invalid embedding options")

	// errBadResponse marks a provider response with the wrong vector count or
	// dimension. It is never retried.
	errBadResponse = errors.New("unexpected embedding response")
)

// BatchError reports the batch that failed and the chunk indices it held, so
// a later run can resume with Options.StartBatch set to Batch.
type BatchError struct {
	Batch        int
	ChunkIndices []int
	Err          error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: batch %d (chunks %v): %v", ErrEmbeddingFailed, e.Batch, e.ChunkIndices, e.Err)
}

// Unwrap exposes both ErrEmbeddingFailed and the provider error.
func (e *BatchError) Unwrap() []error {
	return []error{ErrEmbeddingFailed, e.Err}
}
