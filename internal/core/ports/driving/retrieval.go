package driving

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// Retriever returns the chunks most relevant to a query within a filter.
type Retriever interface {
	// Retrieve embeds the query and returns the top k chunks.
	// k <= 0 uses the configured default.
	Retrieve(ctx context.Context, query string, filter domain.QueryFilter, k int) (*domain.RetrievalResult, error)

	// ContextOptions lists the tickers and periods of indexed documents.
	ContextOptions(ctx context.Context) (*domain.ContextOptions, error)
}
