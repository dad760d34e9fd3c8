package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/tenk/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query   string   `json:"query" jsonschema:"what to look for in the filings"`
	Tickers []string `json:"tickers" jsonschema:"ticker symbols to search, e.g. AAPL"`
	Filings []string `json:"filings" jsonschema:"filing periods to search, e.g. 2023 Q4"`
	K       int      `json:"k,omitempty" jsonschema:"number of passages to retrieve (default from settings)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Chunks []ChunkOutput `json:"chunks"`
	Count  int           `json:"count"`
}

// ChunkOutput is one retrieved passage.
type ChunkOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Section    string  `json:"section,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string   `json:"question" jsonschema:"question about the selected filings"`
	Tickers  []string `json:"tickers" jsonschema:"ticker symbols to search, e.g. AAPL"`
	Filings  []string `json:"filings" jsonschema:"filing periods to search, e.g. 2023 Q4"`
	K        int      `json:"k,omitempty" jsonschema:"number of passages to retrieve (default from settings)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput points at a passage the answer was grounded on.
type CitationOutput struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Section string  `json:"section,omitempty"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// ListDocumentsInput is the (empty) input schema for list_documents.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for list_documents.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Tickers   []string         `json:"tickers"`
	Filings   []string         `json:"filings"`
}

// DocumentOutput summarises one ingested filing.
type DocumentOutput struct {
	ID       string `json:"id"`
	Ticker   string `json:"ticker"`
	Filing   string `json:"filing"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the passages of the selected 10-K filings most relevant to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the selected 10-K filings, with citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List ingested filings and the tickers and periods that can be queried",
	}, s.handleListDocuments)
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	filter, err := domain.NewQueryFilter(input.Tickers, input.Filings)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	result, err := s.ports.Retriever.Retrieve(ctx, input.Query, filter, input.K)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Chunks: make([]ChunkOutput, len(result.Chunks)),
		Count:  len(result.Chunks),
	}
	for i, c := range result.Chunks {
		output.Chunks[i] = ChunkOutput{
			ChunkID:    c.Chunk.ID,
			DocumentID: c.Chunk.DocumentID,
			Source:     c.Source(),
			Section:    c.Chunk.Section,
			Score:      c.Score,
			Content:    c.Chunk.Content,
		}
	}
	return nil, output, nil
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Answer == nil {
		return nil, AskOutput{}, ErrAnswerUnavailable
	}

	filter, err := domain.NewQueryFilter(input.Tickers, input.Filings)
	if err != nil {
		return nil, AskOutput{}, err
	}

	result, err := s.ports.Retriever.Retrieve(ctx, input.Question, filter, input.K)
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.ports.Answer.Synthesize(ctx, input.Question, result, nil)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:    answer.Text,
		Citations: make([]CitationOutput, len(answer.Citations)),
	}
	for i, c := range answer.Citations {
		output.Citations[i] = CitationOutput{
			ChunkID: c.ChunkID,
			Source:  c.Source,
			Section: c.Section,
			Snippet: c.Snippet,
			Score:   c.Score,
		}
	}
	return nil, output, nil
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	output := ListDocumentsOutput{
		Documents: []DocumentOutput{},
		Tickers:   []string{},
		Filings:   []string{},
	}

	if s.ports.KnowledgeBase != nil {
		docs, err := s.ports.KnowledgeBase.List(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, err
		}
		for _, d := range docs {
			output.Documents = append(output.Documents, documentOutput(d))
		}
	}

	opts, err := s.ports.Retriever.ContextOptions(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	output.Tickers = append(output.Tickers, opts.Tickers...)
	for _, p := range opts.Periods {
		output.Filings = append(output.Filings, p.String())
	}

	return nil, output, nil
}

func documentOutput(d domain.DocumentSummary) DocumentOutput {
	return DocumentOutput{
		ID:       d.ID,
		Ticker:   d.Ticker,
		Filing:   d.Period.String(),
		Filename: d.Filename,
		Status:   string(d.Status),
		Chunks:   d.ChunkCount,
	}
}
