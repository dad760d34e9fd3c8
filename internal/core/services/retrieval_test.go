package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// seedFilings ingests two Apple years and one Microsoft year.
func seedFilings(t *testing.T, f *kbFixture) (aapl2023, aapl2022, msft2023 *domain.Document) {
	t.Helper()
	aapl2023 = f.ingestText(t, "AAPL", 2023, domain.Q4, appleParagraphs...)
	aapl2022 = f.ingestText(t, "AAPL", 2022, domain.Q4,
		"iPhone net sales were 205 billion dollars in fiscal 2022.",
		"Wearables revenue declined year over year.",
	)
	msft2023 = f.ingestText(t, "MSFT", 2023, domain.Q4,
		"Azure cloud revenue grew 29 percent.",
		"iPhone compatibility of Office apps improved.",
	)
	return aapl2023, aapl2022, msft2023
}

func TestRetrieve_FilteredTopK(t *testing.T) {
	f := newKBFixture(t)
	aapl2023, _, _ := seedFilings(t, f)

	result, err := f.retriever.Retrieve(context.Background(), "iPhone net sales",
		filterFor(t, []string{"AAPL"}, "2023Q4"), 2)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2)

	assert.Equal(t, "iPhone net sales", result.Query)
	assert.Equal(t, domain.ChunkID(aapl2023.ID, 0), result.Chunks[0].Chunk.ID)
	assert.Contains(t, result.Chunks[0].Chunk.Content, "iPhone")
	assert.GreaterOrEqual(t, result.Chunks[0].Score, result.Chunks[1].Score)

	for _, c := range result.Chunks {
		assert.Equal(t, "AAPL", c.Ticker)
		assert.Equal(t, domain.FilingPeriod{Year: 2023, Quarter: domain.Q4}, c.Period)
		assert.Equal(t, aapl2023.ID, c.Chunk.DocumentID)
		assert.Equal(t, "AAPL-2023Q4.md", c.Source())
	}
}

func TestRetrieve_FilterNeverLeaks(t *testing.T) {
	f := newKBFixture(t)
	_, _, msft := seedFilings(t, f)

	// The index misbehaves and returns a chunk outside the filter.
	f.index.extraHits = []driven.VectorHit{{
		ChunkID:    domain.ChunkID(msft.ID, 0),
		DocumentID: msft.ID,
		Similarity: 0.99,
	}}

	result, err := f.retriever.Retrieve(context.Background(), "Azure cloud revenue",
		filterFor(t, []string{"AAPL"}, "2023Q4", "2022Q4"), 10)
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	for _, c := range result.Chunks {
		assert.Equal(t, "AAPL", c.Ticker)
		assert.NotEqual(t, msft.ID, c.Chunk.DocumentID)
	}
}

func TestRetrieve_DefaultsK(t *testing.T) {
	f := newKBFixture(t)
	seedFilings(t, f)

	result, err := f.retriever.Retrieve(context.Background(), "revenue",
		filterFor(t, []string{"AAPL", "MSFT"}, "2023Q4", "2022Q4"), 0)
	require.NoError(t, err)
	assert.Len(t, result.Chunks, f.settings.Retrieval.TopK)
}

func TestRetrieve_SkipsDeletedDocuments(t *testing.T) {
	f := newKBFixture(t)
	aapl2023, aapl2022, _ := seedFilings(t, f)
	ctx := context.Background()
	filter := filterFor(t, []string{"AAPL"}, "2023Q4", "2022Q4")

	require.NoError(t, f.kb.Delete(ctx, aapl2023.ID))

	// A stale hit for the deleted document is dropped.
	f.index.extraHits = []driven.VectorHit{{
		ChunkID:    domain.ChunkID(aapl2023.ID, 0),
		DocumentID: aapl2023.ID,
		Similarity: 1,
	}}

	result, err := f.retriever.Retrieve(ctx, "iPhone net sales", filter, 5)
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	for _, c := range result.Chunks {
		assert.Equal(t, aapl2022.ID, c.Chunk.DocumentID)
	}
}

func TestRetrieve_FillsKPastDroppedHits(t *testing.T) {
	f := newKBFixture(t)
	ctx := context.Background()
	doc := f.ingestText(t, "AAPL", 2023, domain.Q4, appleParagraphs...)

	// Vectors left behind by an interrupted rollback outrank every real chunk.
	query := "iPhone net sales"
	vec, err := f.embedder.Embed(ctx, query)
	require.NoError(t, err)
	period := domain.FilingPeriod{Year: 2023, Quarter: domain.Q4}
	var orphans []driven.VectorRecord
	for i := range 3 {
		orphans = append(orphans, driven.VectorRecord{
			ChunkID: domain.ChunkID("orphan", i), DocumentID: "orphan",
			Ticker: "AAPL", Period: period, Sequence: i, Vector: vec,
		})
	}
	require.NoError(t, f.index.Upsert(ctx, orphans...))

	result, err := f.retriever.Retrieve(ctx, query, filterFor(t, []string{"AAPL"}, "2023Q4"), 2)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2)
	for _, c := range result.Chunks {
		assert.Equal(t, doc.ID, c.Chunk.DocumentID)
	}
}

func TestRetrieve_Errors(t *testing.T) {
	f := newKBFixture(t)
	seedFilings(t, f)
	ctx := context.Background()
	filter := filterFor(t, []string{"AAPL"}, "2023Q4")

	_, err := f.retriever.Retrieve(ctx, "   ", filter, 2)
	require.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = f.retriever.Retrieve(ctx, "revenue", domain.QueryFilter{Tickers: []string{"AAPL"}}, 2)
	require.ErrorIs(t, err, domain.ErrEmptyFilter)

	f.embedder.failOn = "margin"
	_, err = f.retriever.Retrieve(ctx, "gross margin", filter, 2)
	require.ErrorIs(t, err, domain.ErrEmbeddingFailed)
	f.embedder.failOn = ""

	f.index.fail(nil, nil, errBoom)
	result, err := f.retriever.Retrieve(ctx, "revenue", filter, 2)
	require.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Nil(t, result)

	none := NewRetrievalService(f.docs, f.index, nil, f.settings)
	_, err = none.Retrieve(ctx, "revenue", filter, 2)
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestRetrieve_ContextOptions(t *testing.T) {
	f := newKBFixture(t)
	seedFilings(t, f)

	// A failed filing is not selectable.
	f.embedder.failOn = "Nvidia"
	_, err := f.ingest.Ingest(context.Background(), textFile("NVDA", "Nvidia data center sales."),
		domain.FilingMetadata{Ticker: "NVDA", Year: 2021, Quarter: domain.Q4}, domain.IngestOptions{})
	require.Error(t, err)

	opts, err := f.retriever.ContextOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, opts.Tickers)
	assert.Equal(t, []domain.FilingPeriod{
		{Year: 2023, Quarter: domain.Q4},
		{Year: 2022, Quarter: domain.Q4},
	}, opts.Periods)
}
