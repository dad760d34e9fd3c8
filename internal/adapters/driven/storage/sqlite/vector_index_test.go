package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

var (
	q4of2023 = domain.FilingPeriod{Year: 2023, Quarter: domain.Q4}
	q3of2023 = domain.FilingPeriod{Year: 2023, Quarter: domain.Q3}
)

func record(docID, ticker string, period domain.FilingPeriod, seq int, vec ...float32) driven.VectorRecord {
	return driven.VectorRecord{
		ChunkID:    domain.ChunkID(docID, seq),
		DocumentID: docID,
		Ticker:     ticker,
		Period:     period,
		Sequence:   seq,
		Vector:     vec,
	}
}

func seedIndex(t *testing.T) driven.VectorIndex {
	t.Helper()
	idx := setupTestStore(t).VectorIndex()
	require.NoError(t, idx.Upsert(context.Background(),
		record("aapl", "AAPL", q4of2023, 0, 1, 0, 0),
		record("aapl", "AAPL", q4of2023, 1, 0.9, 0.1, 0),
		record("aapl", "AAPL", q4of2023, 2, 0, 1, 0),
		record("aapl-q3", "AAPL", q3of2023, 0, 1, 0, 0),
		record("msft", "MSFT", q4of2023, 0, 1, 0, 0),
	))
	return idx
}

func TestVectorIndex_SearchFiltersAndOrders(t *testing.T) {
	idx := seedIndex(t)
	filter := domain.QueryFilter{Tickers: []string{"AAPL"}, Periods: []domain.FilingPeriod{q4of2023}}

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, filter, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "aapl:0000", hits[0].ChunkID)
	assert.Equal(t, "aapl:0001", hits[1].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)

	for _, h := range hits {
		assert.Equal(t, "aapl", h.DocumentID)
	}
}

func TestVectorIndex_SearchMultiplePeriods(t *testing.T) {
	idx := seedIndex(t)
	filter := domain.QueryFilter{Tickers: []string{"AAPL"}, Periods: []domain.FilingPeriod{q4of2023, q3of2023}}

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, filter, 10)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	// Equal similarity: ascending sequence, then chunk ID.
	assert.Equal(t, "aapl-q3:0000", hits[0].ChunkID)
	assert.Equal(t, "aapl:0000", hits[1].ChunkID)
}

func TestVectorIndex_EmptyFilterMatchesNothing(t *testing.T) {
	idx := seedIndex(t)
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, domain.QueryFilter{Tickers: []string{"AAPL"}}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	err := idx.Upsert(ctx, record("x", "X", q4of2023, 0, 1, 2))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	filter := domain.QueryFilter{Tickers: []string{"AAPL"}, Periods: []domain.FilingPeriod{q4of2023}}
	_, err = idx.Search(ctx, []float32{1, 0}, filter, 3)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestVectorIndex_UpsertIsAtomic(t *testing.T) {
	idx := setupTestStore(t).VectorIndex()
	ctx := context.Background()

	err := idx.Upsert(ctx,
		record("doc", "AAPL", q4of2023, 0, 1, 0),
		record("doc", "AAPL", q4of2023, 1),
	)
	require.Error(t, err)

	n, err := idx.Count(ctx, "doc")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVectorIndex_DeleteAndCount(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	n, err := idx.Count(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, idx.Delete(ctx, "aapl:0002", "missing:0000"))
	n, err = idx.Count(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := idx.DeleteDocument(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = idx.DeleteDocument(ctx, "aapl")
	require.NoError(t, err)
	assert.Zero(t, removed)

	n, err = idx.Count(ctx, "msft")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorIndex_Closed(t *testing.T) {
	idx := seedIndex(t)
	require.NoError(t, idx.Close())

	_, err := idx.Count(context.Background(), "aapl")
	assert.True(t, errors.Is(err, domain.ErrIndexUnavailable))

	_, err = idx.Search(context.Background(), []float32{1, 0, 0},
		domain.QueryFilter{Tickers: []string{"AAPL"}, Periods: []domain.FilingPeriod{q4of2023}}, 1)
	assert.True(t, errors.Is(err, domain.ErrIndexUnavailable))
}
