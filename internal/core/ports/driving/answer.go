package driving

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// AnswerSynthesizer answers a question from retrieved chunks.
type AnswerSynthesizer interface {
	// Synthesize prompts the LLM with the chunks above the score threshold and
	// returns its text verbatim with one citation per chunk in the prompt.
	Synthesize(ctx context.Context, query string, result *domain.RetrievalResult, history []domain.ChatTurn) (*domain.Answer, error)
}

// ChatService runs retrieval and synthesis against a caller-owned session.
type ChatService interface {
	// NewSession starts an empty session scoped to filter.
	NewSession(filter domain.QueryFilter) (*domain.Session, error)

	// Ask answers a question and appends both turns to the session on success only.
	Ask(ctx context.Context, session *domain.Session, question string, k int) (*domain.Answer, error)
}
