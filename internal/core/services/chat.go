package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// ChatService answers questions inside a caller-owned session.
type ChatService struct {
	retriever   driving.Retriever
	synthesizer driving.AnswerSynthesizer
	settings    domain.AppSettings
	now         func() time.Time
}

// NewChatService creates a new chat service.
func NewChatService(
	retriever driving.Retriever,
	synthesizer driving.AnswerSynthesizer,
	settings domain.AppSettings,
) *ChatService {
	return &ChatService{
		retriever:   retriever,
		synthesizer: synthesizer,
		settings:    settings,
		now:         time.Now,
	}
}

// NewSession starts an empty session scoped to filter.
func (c *ChatService) NewSession(filter domain.QueryFilter) (*domain.Session, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return &domain.Session{ID: uuid.NewString(), Filter: filter}, nil
}

// Ask retrieves chunks for question within the session filter and
// synthesises an answer using recent turns as history. The session is
// only extended when both steps succeed.
func (c *ChatService) Ask(
	ctx context.Context, session *domain.Session, question string, k int,
) (*domain.Answer, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", domain.ErrInvalidInput)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is blank", domain.ErrEmptyInput)
	}

	result, err := c.retriever.Retrieve(ctx, question, session.Filter, k)
	if err != nil {
		return nil, err
	}

	answer, err := c.synthesizer.Synthesize(ctx, question, result, session.History(c.settings.Synthesis.HistoryTurns))
	if err != nil {
		return nil, err
	}

	now := c.now()
	session.Append(
		domain.ChatTurn{Role: domain.RoleUser, Content: question, At: now},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: answer.Text, Citations: answer.Citations, At: now},
	)
	return answer, nil
}
