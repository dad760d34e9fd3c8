package resilience

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Ensure embeddingService implements the interface.
var _ driven.EmbeddingService = (*embeddingService)(nil)

type embeddingService struct {
	inner driven.EmbeddingService
	guard *guard
}

// Embedding wraps svc so every Embed and EmbedBatch call is guarded.
func Embedding(svc driven.EmbeddingService, opts Options) driven.EmbeddingService {
	if opts.Name == "" {
		opts.Name = "embedding:" + svc.ModelName()
	}
	return &embeddingService{inner: svc, guard: newGuard(opts)}
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := s.guard.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := s.guard.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

func (s *embeddingService) Dimensions() int   { return s.inner.Dimensions() }
func (s *embeddingService) ModelName() string { return s.inner.ModelName() }
func (s *embeddingService) Close() error      { return s.inner.Close() }

// Ping bypasses the limiter and breaker so health checks stay honest.
func (s *embeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
