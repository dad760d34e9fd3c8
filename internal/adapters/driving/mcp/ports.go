package mcp

import (
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Retriever answers the retrieve tool and scopes the ask tool.
	Retriever driving.Retriever

	// Answer synthesises answers for the ask tool. Optional.
	Answer driving.AnswerSynthesizer

	// KnowledgeBase backs list_documents and the document resources. Optional.
	KnowledgeBase driving.KnowledgeBase
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
