package mcp

import (
	"context"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	result  *domain.RetrievalResult
	options *domain.ContextOptions
	err     error

	gotQuery  string
	gotFilter domain.QueryFilter
	gotK      int
}

func (m *mockRetriever) Retrieve(
	_ context.Context,
	query string,
	filter domain.QueryFilter,
	k int,
) (*domain.RetrievalResult, error) {
	m.gotQuery, m.gotFilter, m.gotK = query, filter, k
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{Query: query, Filter: filter}, nil
	}
	return m.result, nil
}

func (m *mockRetriever) ContextOptions(_ context.Context) (*domain.ContextOptions, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.options == nil {
		return &domain.ContextOptions{}, nil
	}
	return m.options, nil
}

// mockAnswer is a mock implementation of driving.AnswerSynthesizer.
type mockAnswer struct {
	answer *domain.Answer
	err    error
}

func (m *mockAnswer) Synthesize(
	_ context.Context,
	_ string,
	_ *domain.RetrievalResult,
	_ []domain.ChatTurn,
) (*domain.Answer, error) {
	return m.answer, m.err
}

// mockKnowledgeBase is a mock implementation of driving.KnowledgeBase.
type mockKnowledgeBase struct {
	documents []domain.DocumentSummary
	document  *domain.Document
	err       error
}

func (m *mockKnowledgeBase) List(_ context.Context) ([]domain.DocumentSummary, error) {
	return m.documents, m.err
}

func (m *mockKnowledgeBase) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockKnowledgeBase) Details(_ context.Context, _ string) (*domain.DocumentDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.DocumentDetails{Document: *m.document}, nil
}

func (m *mockKnowledgeBase) Verify(_ context.Context, _ string) (bool, error) {
	return m.err == nil, m.err
}

func (m *mockKnowledgeBase) Original(_ context.Context, _ string) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.document.Original, m.document.Filename, nil
}

func (m *mockKnowledgeBase) Delete(_ context.Context, _ string) error {
	return m.err
}
