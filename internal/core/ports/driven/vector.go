package driven

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// VectorIndex stores chunk vectors with filing metadata and answers
// filtered nearest-neighbour queries.
//
// Implementations return domain.ErrIndexUnavailable once closed.
type VectorIndex interface {
	// Upsert writes all records as a single unit: either every record is
	// stored or none is.
	Upsert(ctx context.Context, records ...VectorRecord) error

	// Delete removes vectors by chunk ID. Missing IDs are ignored.
	Delete(ctx context.Context, chunkIDs ...string) error

	// DeleteDocument removes every vector of a document and returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Search returns the k most similar vectors whose filing matches filter.
	// Results are ordered by descending similarity, ties by ascending sequence.
	Search(ctx context.Context, query []float32, filter domain.QueryFilter, k int) ([]VectorHit, error)

	// Count returns the number of vectors stored for a document.
	Count(ctx context.Context, documentID string) (int, error)

	// Close releases resources.
	Close() error
}

// VectorRecord is one chunk vector plus the metadata search filters on.
type VectorRecord struct {
	ChunkID    string
	DocumentID string
	Ticker     string
	Period     domain.FilingPeriod
	Sequence   int
	Vector     []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's parent document.
	DocumentID string

	// Sequence is the chunk's position in its document.
	Sequence int

	// Similarity is the cosine similarity score.
	Similarity float64
}
