package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
	"github.com/custodia-labs/tenk/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerSynthesizer = (*AnswerService)(nil)

const (
	// snippetLen caps the chunk text carried on a citation.
	snippetLen = 240

	// answerMaxTokens bounds completion length.
	answerMaxTokens = 1024

	// answerTemperature keeps answers close to the context.
	answerTemperature = 0.2
)

// AnswerService builds a grounded prompt from retrieved chunks and asks the
// LLM to answer it.
type AnswerService struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.AppSettings
}

// NewAnswerService creates a new answer service. llm may be nil when no
// provider is configured; Synthesize then fails with domain.ErrLLMUnavailable.
func NewAnswerService(llm driven.LLMService, prompts driven.PromptStore, settings domain.AppSettings) *AnswerService {
	return &AnswerService{llm: llm, prompts: prompts, settings: settings}
}

// Synthesize answers query from result. Chunks scoring below the minimum
// are dropped, and the rest are packed into the prompt in order until the
// context budget is spent. Every packed chunk becomes a citation.
//
// The LLM is called even when no chunk survives, so it can say the
// filings do not cover the question.
func (a *AnswerService) Synthesize(
	ctx context.Context, query string, result *domain.RetrievalResult, history []domain.ChatTurn,
) (*domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: question is blank", domain.ErrEmptyInput)
	}
	if a.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	var chunks []domain.ScoredChunk
	if result != nil {
		chunks = a.selectChunks(result.Chunks)
	}

	template, err := a.prompts.Load(driven.PromptAnswer)
	if err != nil {
		return nil, &domain.SynthesisError{Reason: "load prompt", Err: err}
	}
	system, err := a.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return nil, &domain.SynthesisError{Reason: "load system prompt", Err: err}
	}

	prompt := fmt.Sprintf(template,
		formatHistory(lastTurns(history, a.settings.Synthesis.HistoryTurns)),
		formatContext(chunks),
		query,
	)

	done := logger.Timed("synthesize")
	text, err := a.llm.Complete(ctx, prompt, driven.CompletionOptions{
		System:      system,
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	done()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("synthesize: %w", ctx.Err())
		}
		return nil, &domain.SynthesisError{Reason: "completion failed", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &domain.SynthesisError{Reason: "empty completion"}
	}

	citations := make([]domain.Citation, 0, len(chunks))
	for _, c := range chunks {
		citations = append(citations, domain.Citation{
			ChunkID:    c.Chunk.ID,
			DocumentID: c.Chunk.DocumentID,
			Source:     c.Source(),
			Section:    c.Chunk.Section,
			Snippet:    snippet(c.Chunk.Content, snippetLen),
			Score:      c.Score,
		})
	}

	logger.Debug("answered with %d citations using %s", len(citations), a.llm.ModelName())
	return &domain.Answer{Text: text, Citations: citations}, nil
}

// selectChunks keeps chunks at or above the minimum score, in order, until
// adding the next would exceed the context budget. The first chunk is always
// kept if it passes the score threshold.
func (a *AnswerService) selectChunks(in []domain.ScoredChunk) []domain.ScoredChunk {
	budget := a.settings.Synthesis.MaxContextChars
	out := make([]domain.ScoredChunk, 0, len(in))
	used := 0
	for _, c := range in {
		if c.Score < a.settings.Retrieval.MinScore {
			continue
		}
		n := len(c.Chunk.Content)
		if budget > 0 && len(out) > 0 && used+n > budget {
			break
		}
		out = append(out, c)
		used += n
	}
	return out
}

func lastTurns(history []domain.ChatTurn, n int) []domain.ChatTurn {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func formatHistory(turns []domain.ChatTurn) string {
	if len(turns) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, strings.TrimSpace(t.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatContext numbers each chunk so the model can cite it as [n].
func formatContext(chunks []domain.ScoredChunk) string {
	if len(chunks) == 0 {
		return "(no matching passages in the selected filings)"
	}
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s %s - %s", i+1, c.Ticker, c.Period, c.Filename)
		if c.Chunk.Section != "" {
			fmt.Fprintf(&b, " - %s", c.Chunk.Section)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(c.Chunk.Content))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// snippet collapses whitespace and shortens s to at most n bytes,
// cutting on a rune boundary.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "..."
}
