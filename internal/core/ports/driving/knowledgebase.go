package driving

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// KnowledgeBase lists, inspects and deletes ingested documents.
type KnowledgeBase interface {
	// List returns every document ordered by ticker then newest period first.
	List(ctx context.Context) ([]domain.DocumentSummary, error)

	// Get retrieves a document. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Details returns the document with stored and indexed chunk counts.
	Details(ctx context.Context, id string) (*domain.DocumentDetails, error)

	// Verify reports whether the document's status agrees with the chunk
	// counts in the document store and the vector index.
	Verify(ctx context.Context, id string) (bool, error)

	// Original returns the uploaded bytes and filename.
	Original(ctx context.Context, id string) ([]byte, string, error)

	// Delete removes vectors first, then the record.
	// On vector failure the record is untouched and the error wraps
	// domain.ErrDeletePartialFailure.
	Delete(ctx context.Context, id string) error
}
