package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrInvalidConfig", ErrInvalidConfig},
		{"ErrInvalidMetadata", ErrInvalidMetadata},
		{"ErrEmptyInput", ErrEmptyInput},
		{"ErrEmptyFilter", ErrEmptyFilter},
		{"ErrExtractionFailed", ErrExtractionFailed},
		{"ErrEmbeddingFailed", ErrEmbeddingFailed},
		{"ErrIndexUnavailable", ErrIndexUnavailable},
		{"ErrSynthesisFailed", ErrSynthesisFailed},
		{"ErrDeletePartialFailure", ErrDeletePartialFailure},
		{"ErrLeaseConflict", ErrLeaseConflict},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestExtractionError tests sentinel and cause unwrapping
func TestExtractionError(t *testing.T) {
	cause := errors.New("corrupt xref table")
	err := fmt.Errorf("ingest: %w", &ExtractionError{Reason: "pdf parse", Err: cause})

	assert.True(t, errors.Is(err, ErrExtractionFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "pdf parse")

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "pdf parse", ee.Reason)

	noCause := &ExtractionError{Reason: "no text extracted"}
	assert.True(t, errors.Is(noCause, ErrExtractionFailed))
	assert.Equal(t, "extraction failed: no text extracted", noCause.Error())
}

// TestEmbeddingError tests the failing chunk is reported
func TestEmbeddingError(t *testing.T) {
	cause := errors.New("503")
	err := &EmbeddingError{Sequence: 1, Err: cause}

	assert.True(t, errors.Is(err, ErrEmbeddingFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "chunk 1")

	query := &EmbeddingError{Sequence: -1, Err: cause}
	assert.NotContains(t, query.Error(), "chunk")
}

// TestSynthesisError tests sentinel unwrapping
func TestSynthesisError(t *testing.T) {
	err := &SynthesisError{Reason: "empty completion"}
	assert.True(t, errors.Is(err, ErrSynthesisFailed))
	assert.Contains(t, err.Error(), "empty completion")
}

// TestDeleteError tests the remaining count is surfaced
func TestDeleteError(t *testing.T) {
	cause := errors.New("database is locked")
	err := &DeleteError{DocumentID: "doc-1", Remaining: 4, Err: cause}

	assert.True(t, errors.Is(err, ErrDeletePartialFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "doc-1")
	assert.Contains(t, err.Error(), "4 vectors remaining")
}

// TestIsRetriable tests collaborator errors are retriable and validation errors are not
func TestIsRetriable(t *testing.T) {
	retriable := []error{
		&ExtractionError{Reason: "x"},
		&EmbeddingError{Sequence: 2, Err: errors.New("x")},
		fmt.Errorf("search: %w", ErrIndexUnavailable),
		&SynthesisError{Reason: "x"},
		&DeleteError{DocumentID: "d", Remaining: 1, Err: errors.New("x")},
		ErrLeaseConflict,
		fmt.Errorf("embed: %w", context.DeadlineExceeded),
	}
	for _, err := range retriable {
		assert.True(t, IsRetriable(err), err.Error())
	}

	permanent := []error{
		ErrInvalidMetadata,
		ErrInvalidConfig,
		ErrEmptyFilter,
		ErrEmptyInput,
		ErrNotFound,
		ErrAlreadyExists,
		nil,
	}
	for _, err := range permanent {
		assert.False(t, IsRetriable(err))
	}
}
