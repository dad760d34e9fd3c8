package resilience

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Ensure llmService implements the interface.
var _ driven.LLMService = (*llmService)(nil)

type llmService struct {
	inner driven.LLMService
	guard *guard
}

// LLM wraps svc so every Complete call is guarded.
func LLM(svc driven.LLMService, opts Options) driven.LLMService {
	if opts.Name == "" {
		opts.Name = "llm:" + svc.ModelName()
	}
	return &llmService{inner: svc, guard: newGuard(opts)}
}

func (s *llmService) Complete(ctx context.Context, prompt string, opts driven.CompletionOptions) (string, error) {
	var out string
	err := s.guard.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Complete(ctx, prompt, opts)
		return err
	})
	return out, err
}

func (s *llmService) ModelName() string { return s.inner.ModelName() }
func (s *llmService) Close() error      { return s.inner.Close() }

// Ping bypasses the limiter and breaker.
func (s *llmService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
