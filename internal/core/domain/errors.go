package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an active document already holds the filing key.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor handles the upload's MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Validation Errors. These are raised before any side effect.

	// ErrInvalidConfig indicates rejected chunking or pipeline configuration.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidMetadata indicates a bad ticker, year or quarter.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrEmptyInput indicates blank text or a blank query.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyFilter indicates a query filter without tickers or periods.
	ErrEmptyFilter = errors.New("empty filter")

	// Collaborator Errors. The current operation is rolled back and may be retried.

	// ErrExtractionFailed indicates the extractor errored or produced no text.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed indicates the embedding provider errored.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrIndexUnavailable indicates the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrSynthesisFailed indicates the LLM errored or returned nothing.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrDeletePartialFailure indicates vectors could not be removed and the
	// document was left in place. Retrying the delete is safe.
	ErrDeletePartialFailure = errors.New("delete partially failed")

	// ErrLeaseConflict indicates another writer holds the filing lease.
	ErrLeaseConflict = errors.New("filing lease held by another writer")

	// Configuration Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)

// ExtractionError carries the reason extraction failed.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrExtractionFailed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrExtractionFailed, e.Reason)
}

func (e *ExtractionError) Unwrap() []error {
	return causes(ErrExtractionFailed, e.Err)
}

// EmbeddingError names the chunk whose embedding failed.
type EmbeddingError struct {
	Sequence int
	Err      error
}

func (e *EmbeddingError) Error() string {
	if e.Sequence < 0 {
		return fmt.Sprintf("%s: %v", ErrEmbeddingFailed, e.Err)
	}
	return fmt.Sprintf("%s: chunk %d: %v", ErrEmbeddingFailed, e.Sequence, e.Err)
}

func (e *EmbeddingError) Unwrap() []error {
	return causes(ErrEmbeddingFailed, e.Err)
}

// SynthesisError carries the reason answer synthesis failed.
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrSynthesisFailed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrSynthesisFailed, e.Reason)
}

func (e *SynthesisError) Unwrap() []error {
	return causes(ErrSynthesisFailed, e.Err)
}

// DeleteError reports vectors that survived a failed delete.
// Remaining is -1 when the count itself could not be read.
type DeleteError struct {
	DocumentID string
	Remaining  int
	Err        error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("%s: document %s has %d vectors remaining: %v",
		ErrDeletePartialFailure, e.DocumentID, e.Remaining, e.Err)
}

func (e *DeleteError) Unwrap() []error {
	return causes(ErrDeletePartialFailure, e.Err)
}

func causes(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// IsRetriable reports whether err came from a collaborator and the
// operation may succeed if repeated.
func IsRetriable(err error) bool {
	for _, target := range []error{
		ErrExtractionFailed,
		ErrEmbeddingFailed,
		ErrIndexUnavailable,
		ErrSynthesisFailed,
		ErrDeletePartialFailure,
		ErrLeaseConflict,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
