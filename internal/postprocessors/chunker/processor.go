// Package chunker provides the boundary-aware text chunker and the
// post-processor that turns its spans into document chunks.
package chunker

import (
	"context"
	"fmt"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = 1500

// DefaultChunkOverlap is the default number of overlapping bytes.
const DefaultChunkOverlap = 200

// Processor splits document content into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	cfg     Config
	chunker *Chunker
}

var _ driven.PostProcessor = (*Processor)(nil)

// Option configures the chunker processor.
type Option func(*Config)

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		c.MaxChunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Config) {
		c.Overlap = overlap
	}
}

// WithSplitOn sets the preferred boundary.
func WithSplitOn(mode domain.SplitMode) Option {
	return func(c *Config) {
		c.SplitOn = mode
	}
}

// New creates a new chunker processor with the given options.
// Invalid sizes fail with domain.ErrInvalidConfig.
func New(opts ...Option) (*Processor, error) {
	cfg := Config{
		MaxChunkSize: DefaultChunkSize,
		Overlap:      DefaultChunkOverlap,
		SplitOn:      domain.SplitParagraph,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg, chunker: c}, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Config returns the effective configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	spans, err := p.chunker.Spans(doc.Content)
	if err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	for span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chunking cancelled: %w", err)
		}
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, span.Sequence),
			DocumentID: doc.ID,
			Sequence:   span.Sequence,
			Start:      span.Start,
			End:        span.End,
			Content:    span.Text,
		})
	}

	return chunks, nil
}
