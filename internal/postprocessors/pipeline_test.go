package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
	calls  int
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, 0, p.Len())
	p.Add(&mockProcessor{name: "test"})
	assert.Equal(t, 1, p.Len())
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	chunks, err := NewPipeline().Process(context.Background(), &domain.Document{ID: "doc", Content: "text"})
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestPipeline_Process_ChainsInOrder(t *testing.T) {
	first := &mockProcessor{name: "first", chunks: []domain.Chunk{{ID: "doc:0000", DocumentID: "doc", Sequence: 0}}}
	second := &mockProcessor{name: "second"}

	chunks, err := NewPipeline(first, second).Process(context.Background(), &domain.Document{ID: "doc"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	boom := errors.New("boom")
	after := &mockProcessor{name: "after"}
	p := NewPipeline(&mockProcessor{name: "failing", err: boom}, after)

	_, err := p.Process(context.Background(), &domain.Document{ID: "doc"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, 0, after.calls)
}

func TestPipeline_Process_RejectsOutOfOrderChunks(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "bad", chunks: []domain.Chunk{
		{ID: "doc:0000", DocumentID: "doc", Sequence: 0},
		{ID: "doc:0002", DocumentID: "doc", Sequence: 2},
	}})

	_, err := p.Process(context.Background(), &domain.Document{ID: "doc"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPipeline_Process_Cancelled(t *testing.T) {
	proc := &mockProcessor{name: "never"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(proc).Process(ctx, &domain.Document{ID: "doc"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, proc.calls)
}

func TestNewDefaultPipeline(t *testing.T) {
	p, err := NewDefaultPipeline(domain.ChunkingSettings{MaxChunkSize: 200, Overlap: 20, SplitOn: domain.SplitParagraph})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	body := strings.Repeat("Net sales increased due to higher iPhone revenue. ", 10)
	doc := &domain.Document{
		ID:      "doc-1",
		Content: "## Item 7. MD&A\n\n" + body + "\n\n## Item 8. Financial Statements\n\n" + body,
	}

	chunks, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	assert.Equal(t, "Item 7. MD&A", chunks[0].Section)
	assert.Equal(t, "Item 8. Financial Statements", chunks[len(chunks)-1].Section)
	for i, c := range chunks {
		assert.Equal(t, i, c.Sequence)
		assert.LessOrEqual(t, len(c.Content), 200)
	}
}

func TestNewDefaultPipeline_InvalidSettings(t *testing.T) {
	_, err := NewDefaultPipeline(domain.ChunkingSettings{MaxChunkSize: 10, Overlap: 10})
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}
