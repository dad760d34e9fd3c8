package driven

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// AIConfigValidator checks that a provider configuration can reach its service.
type AIConfigValidator interface {
	// ValidateEmbedding builds the embedding service and pings it.
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error

	// ValidateLLM builds the LLM service and pings it.
	ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error
}
