package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

func newChat(t *testing.T, f *kbFixture, llm *stubLLM) *ChatService {
	t.Helper()
	return NewChatService(f.retriever, NewAnswerService(llm, testPrompts(), f.settings), f.settings)
}

func TestChat_NewSessionNeedsFilter(t *testing.T) {
	f := newKBFixture(t)
	chat := newChat(t, f, &stubLLM{reply: "ok"})

	_, err := chat.NewSession(domain.QueryFilter{})
	require.ErrorIs(t, err, domain.ErrEmptyFilter)

	s, err := chat.NewSession(filterFor(t, []string{"AAPL"}, "2023Q4"))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Empty(t, s.Turns)
}

func TestChat_AskAppendsTurns(t *testing.T) {
	f := newKBFixture(t)
	seedFilings(t, f)
	llm := &stubLLM{reply: "iPhone sales grew [1]."}
	chat := newChat(t, f, llm)

	s, err := chat.NewSession(filterFor(t, []string{"AAPL"}, "2023Q4"))
	require.NoError(t, err)

	answer, err := chat.Ask(context.Background(), s, "How did iPhone sales do?", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Citations)
	for _, c := range answer.Citations {
		assert.Equal(t, "AAPL-2023Q4.md", c.Source)
	}

	require.Len(t, s.Turns, 2)
	assert.Equal(t, domain.RoleUser, s.Turns[0].Role)
	assert.Equal(t, "How did iPhone sales do?", s.Turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, s.Turns[1].Role)
	assert.Equal(t, answer.Citations, s.Turns[1].Citations)

	_, err = chat.Ask(context.Background(), s, "And services?", 2)
	require.NoError(t, err)
	assert.Contains(t, llm.lastPrompt(), "user: How did iPhone sales do?")
	assert.Len(t, s.Turns, 4)
}

func TestChat_FailureLeavesSessionUntouched(t *testing.T) {
	f := newKBFixture(t)
	seedFilings(t, f)
	llm := &stubLLM{reply: "first"}
	chat := newChat(t, f, llm)
	ctx := context.Background()

	s, err := chat.NewSession(filterFor(t, []string{"AAPL"}, "2023Q4"))
	require.NoError(t, err)
	_, err = chat.Ask(ctx, s, "iPhone?", 2)
	require.NoError(t, err)
	require.Len(t, s.Turns, 2)

	llm.err = errBoom
	_, err = chat.Ask(ctx, s, "Services?", 2)
	require.ErrorIs(t, err, domain.ErrSynthesisFailed)
	assert.Len(t, s.Turns, 2)

	llm.err = nil
	f.index.fail(nil, nil, errBoom)
	_, err = chat.Ask(ctx, s, "Services?", 2)
	require.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Len(t, s.Turns, 2)

	_, err = chat.Ask(ctx, nil, "Services?", 2)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
