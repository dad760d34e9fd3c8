package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
	"github.com/custodia-labs/tenk/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// defaultTopK applies when neither the caller nor the settings give k.
const defaultTopK = 5

// minSearchSlack is the least number of extra hits fetched beyond k, so
// hits dropped while hydrating still leave k results when the index has them.
const minSearchSlack = 8

// RetrievalService embeds queries and returns the closest chunks within a filter.
type RetrievalService struct {
	docStore driven.DocumentStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	settings domain.AppSettings
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	settings domain.AppSettings,
) *RetrievalService {
	return &RetrievalService{
		docStore: docStore,
		index:    index,
		embedder: embedder,
		settings: settings,
	}
}

// Retrieve returns the k chunks most similar to query whose filing is in filter.
func (r *RetrievalService) Retrieve(
	ctx context.Context, query string, filter domain.QueryFilter, k int,
) (*domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is blank", domain.ErrEmptyInput)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = r.settings.Retrieval.TopK
	}
	if k <= 0 {
		k = defaultTopK
	}
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embed query: %w", ctx.Err())
		}
		if errors.Is(err, domain.ErrEmptyInput) {
			return nil, err
		}
		return nil, &domain.EmbeddingError{Sequence: -1, Err: err}
	}

	ictx, cancel := withTimeout(ctx, r.settings.Timeouts.Index)
	defer cancel()
	hits, err := r.index.Search(ictx, vec, filter, k+max(k, minSearchSlack))
	if err != nil {
		return nil, indexError("search", err)
	}

	chunks, err := r.hydrate(ctx, hits, filter)
	if err != nil {
		return nil, err
	}
	if len(chunks) > k {
		chunks = chunks[:k]
	}

	logger.Debug("retrieved %d of %d hits for %q", len(chunks), len(hits), query)
	return &domain.RetrievalResult{Query: query, Filter: filter, Chunks: chunks}, nil
}

// hydrate loads chunk text and filing identity for each hit. Hits whose
// chunk or document has gone, or which fall outside filter, are dropped.
func (r *RetrievalService) hydrate(
	ctx context.Context, hits []driven.VectorHit, filter domain.QueryFilter,
) ([]domain.ScoredChunk, error) {
	docs := make(map[string]*domain.Document)
	out := make([]domain.ScoredChunk, 0, len(hits))

	for _, hit := range hits {
		doc, ok := docs[hit.DocumentID]
		if !ok {
			d, err := r.docStore.GetDocument(ctx, hit.DocumentID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				d = nil
			case err != nil:
				return nil, fmt.Errorf("load document %s: %w", hit.DocumentID, err)
			}
			docs[hit.DocumentID] = d
			doc = d
		}
		if doc == nil || doc.Status != domain.StatusIndexed {
			logger.Debug("dropping hit %s: document not indexed", hit.ChunkID)
			continue
		}
		if !filter.Matches(doc.Ticker, doc.Period) {
			logger.Warn("index returned %s outside the filter, dropping it", hit.ChunkID)
			continue
		}

		chunk, err := r.docStore.GetChunk(ctx, hit.ChunkID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("dropping hit %s: chunk not found", hit.ChunkID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load chunk %s: %w", hit.ChunkID, err)
		}

		out = append(out, domain.ScoredChunk{
			Chunk:    *chunk,
			Ticker:   doc.Ticker,
			Period:   doc.Period,
			Filename: doc.Filename,
			Score:    hit.Similarity,
		})
	}

	slices.SortStableFunc(out, func(a, b domain.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Chunk.Sequence, b.Chunk.Sequence); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})
	return out, nil
}

// ContextOptions lists the tickers and periods of indexed documents.
// Tickers are sorted; periods are newest first.
func (r *RetrievalService) ContextOptions(ctx context.Context) (*domain.ContextOptions, error) {
	docs, err := r.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	opts := &domain.ContextOptions{}
	for _, d := range docs {
		if d.Status != domain.StatusIndexed {
			continue
		}
		if !slices.Contains(opts.Tickers, d.Ticker) {
			opts.Tickers = append(opts.Tickers, d.Ticker)
		}
		if !slices.Contains(opts.Periods, d.Period) {
			opts.Periods = append(opts.Periods, d.Period)
		}
	}

	slices.Sort(opts.Tickers)
	slices.SortFunc(opts.Periods, func(a, b domain.FilingPeriod) int {
		switch {
		case b.Before(a):
			return -1
		case a.Before(b):
			return 1
		default:
			return 0
		}
	})
	return opts, nil
}
