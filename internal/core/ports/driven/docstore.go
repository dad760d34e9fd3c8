package driven

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// At most one active (non-failed) document may exist per filing key;
// SaveDocument returns domain.ErrAlreadyExists when another one holds it.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// UpdateStatus records a status transition.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, reason string, chunkCount int) error

	// SaveChunks stores chunks for a document in one transaction.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document ordered by sequence.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// CountChunks returns the number of stored chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)

	// DeleteChunks removes every chunk of a document, keeping the record.
	DeleteChunks(ctx context.Context, documentID string) error

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns summaries of every document.
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)

	// FindByKey returns every document recorded for a filing key, failed ones included.
	FindByKey(ctx context.Context, key domain.FilingKey) ([]domain.DocumentSummary, error)
}
