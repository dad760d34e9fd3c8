package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/adapters/driven/embedding/local"
	leasememory "github.com/custodia-labs/tenk/internal/adapters/driven/lease/memory"
	"github.com/custodia-labs/tenk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/extractors"
)

var errBoom = errors.New("boom")

// kbFixture wires the services over in-memory adapters.
type kbFixture struct {
	docs     *memory.DocumentStore
	index    *flakyIndex
	leases   *leasememory.Manager
	embedder *flakyEmbedder
	registry *extractors.Registry
	pipeline driven.ChunkPipeline
	settings domain.AppSettings

	kb        *KnowledgeBaseService
	ingest    *IngestionService
	retriever *RetrievalService
}

func newKBFixture(t *testing.T) *kbFixture {
	t.Helper()

	settings := domain.DefaultAppSettings()
	settings.Embedding.BatchSize = 2
	settings.Lease.Poll = 5 * time.Millisecond

	f := &kbFixture{
		docs:     memory.NewDocumentStore(),
		index:    &flakyIndex{VectorIndex: memory.NewVectorIndex()},
		leases:   leasememory.NewManager(),
		embedder: &flakyEmbedder{EmbeddingService: local.NewEmbeddingService(64)},
		registry: extractors.NewDefaultRegistry(),
		pipeline: paragraphPipeline{},
		settings: settings,
	}
	f.wire()
	return f
}

// wire (re)builds the services from the fixture's settings and pipeline.
func (f *kbFixture) wire() {
	f.kb = NewKnowledgeBaseService(f.docs, f.index, f.leases, f.settings)
	f.ingest = NewIngestionService(f.docs, f.index, f.registry, f.pipeline, f.embedder, f.leases, f.kb, f.settings)
	f.retriever = NewRetrievalService(f.docs, f.index, f.embedder, f.settings)
}

// ingestText ingests paragraphs as a plain-text filing and fails the test on error.
func (f *kbFixture) ingestText(t *testing.T, ticker string, year int, q domain.Quarter, paragraphs ...string) *domain.Document {
	t.Helper()
	doc, err := f.ingest.Ingest(context.Background(),
		textFile(ticker, paragraphs...),
		domain.FilingMetadata{Ticker: ticker, Year: year, Quarter: q},
		domain.IngestOptions{},
	)
	require.NoError(t, err)
	return doc
}

func textFile(name string, paragraphs ...string) domain.RawFile {
	return domain.RawFile{
		Filename: strings.ToLower(name) + "-10k.txt",
		Data:     []byte(strings.Join(paragraphs, "\n\n")),
	}
}

func filterFor(t *testing.T, tickers []string, periods ...string) domain.QueryFilter {
	t.Helper()
	f, err := domain.NewQueryFilter(tickers, periods)
	require.NoError(t, err)
	return f
}

// paragraphPipeline makes one chunk per paragraph.
type paragraphPipeline struct{}

func (paragraphPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	offset := 0
	for _, p := range strings.Split(doc.Content, "\n\n") {
		start := strings.Index(doc.Content[offset:], p) + offset
		end := start + len(p)
		offset = end
		if strings.TrimSpace(p) == "" {
			continue
		}
		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, seq),
			DocumentID: doc.ID,
			Sequence:   seq,
			Start:      start,
			End:        end,
			Content:    p,
		})
	}
	return chunks, nil
}

// flakyEmbedder fails on texts containing failOn, or blocks on texts
// containing blockOn until release is closed.
type flakyEmbedder struct {
	*local.EmbeddingService

	mu      sync.Mutex
	failOn  string
	blockOn string
	started chan struct{}
	release chan struct{}
}

func (e *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	failOn, blockOn := e.failOn, e.blockOn
	e.mu.Unlock()

	if failOn != "" && strings.Contains(text, failOn) {
		return nil, errBoom
	}
	if blockOn != "" && strings.Contains(text, blockOn) {
		e.mu.Lock()
		if e.started != nil {
			close(e.started)
			e.started = nil
		}
		release := e.release
		e.mu.Unlock()
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.EmbeddingService.Embed(ctx, text)
}

func (e *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// flakyIndex injects failures into an in-memory index.
type flakyIndex struct {
	*memory.VectorIndex

	mu          sync.Mutex
	upsertErr   error
	deleteErr   error
	searchErr   error
	extraHits   []driven.VectorHit
	partialKeep int
}

func (x *flakyIndex) fail(upsert, del, search error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.upsertErr, x.deleteErr, x.searchErr = upsert, del, search
}

func (x *flakyIndex) Upsert(ctx context.Context, records ...driven.VectorRecord) error {
	x.mu.Lock()
	err := x.upsertErr
	x.mu.Unlock()
	if err != nil {
		return err
	}
	return x.VectorIndex.Upsert(ctx, records...)
}

// DeleteDocument removes all but partialKeep vectors before failing when
// deleteErr is set.
func (x *flakyIndex) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	x.mu.Lock()
	err, keep := x.deleteErr, x.partialKeep
	x.mu.Unlock()
	if err == nil {
		return x.VectorIndex.DeleteDocument(ctx, documentID)
	}
	return 0, x.dropAllBut(ctx, documentID, keep, err)
}

func (x *flakyIndex) dropAllBut(ctx context.Context, documentID string, keep int, err error) error {
	n, cerr := x.VectorIndex.Count(ctx, documentID)
	if cerr != nil {
		return cerr
	}
	var ids []string
	for seq := keep; seq < n; seq++ {
		ids = append(ids, domain.ChunkID(documentID, seq))
	}
	if derr := x.VectorIndex.Delete(ctx, ids...); derr != nil {
		return derr
	}
	return err
}

func (x *flakyIndex) Search(
	ctx context.Context, query []float32, filter domain.QueryFilter, k int,
) ([]driven.VectorHit, error) {
	x.mu.Lock()
	err, extra := x.searchErr, x.extraHits
	x.mu.Unlock()
	if err != nil {
		return nil, err
	}
	hits, err := x.VectorIndex.Search(ctx, query, filter, k)
	if err != nil {
		return nil, err
	}
	return slices.Concat(extra, hits), nil
}

// stubExtractor handles text/plain ahead of the real extractor.
type stubExtractor struct {
	out   string
	err   error
	block bool
}

func (s *stubExtractor) SupportedMIMETypes() []string { return []string{"text/plain"} }
func (s *stubExtractor) Priority() int                { return 100 }

func (s *stubExtractor) Extract(ctx context.Context, _ *domain.RawFile) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

// stubLLM records prompts and returns a canned completion.
type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	system  string
}

func (l *stubLLM) Complete(_ context.Context, prompt string, opts driven.CompletionOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	l.system = opts.System
	return l.reply, l.err
}

func (l *stubLLM) lastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prompts) == 0 {
		return ""
	}
	return l.prompts[len(l.prompts)-1]
}

func (l *stubLLM) ModelName() string          { return "stub" }
func (l *stubLLM) Ping(context.Context) error { return nil }
func (l *stubLLM) Close() error               { return nil }

// mapPrompts serves prompts from a map.
type mapPrompts map[string]string

func (m mapPrompts) Load(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (mapPrompts) Reload() {}

func testPrompts() mapPrompts {
	return mapPrompts{
		driven.PromptAnswer:       "History:\n%s\n\nContext:\n%s\n\nQ: %s",
		driven.PromptAnswerSystem: "Answer from context.",
	}
}

// losingLeases grants leases that can never be renewed.
type losingLeases struct {
	*leasememory.Manager
}

func (losingLeases) Renew(context.Context, *driven.Lease, time.Duration) (*driven.Lease, error) {
	return nil, domain.ErrLeaseConflict
}
