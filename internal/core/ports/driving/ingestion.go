package driving

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// IngestionService turns uploads into indexed documents.
type IngestionService interface {
	// Preview validates metadata and extracts Markdown without persisting anything.
	Preview(ctx context.Context, file domain.RawFile, meta domain.FilingMetadata) (*domain.Draft, error)

	// Commit chunks, embeds and indexes a previewed draft.
	Commit(ctx context.Context, draft *domain.Draft, opts domain.IngestOptions) (*domain.Document, error)

	// Ingest runs extraction and Commit in one call.
	Ingest(ctx context.Context, file domain.RawFile, meta domain.FilingMetadata, opts domain.IngestOptions) (*domain.Document, error)
}
