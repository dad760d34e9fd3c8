// Package mcp exposes the knowledge base to AI assistants over the Model
// Context Protocol: retrieval and answering as tools, documents as resources.
package mcp

import "errors"

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")

// ErrAnswerUnavailable is returned by the ask tool when no synthesizer is wired.
var ErrAnswerUnavailable = errors.New("mcp: answering is not configured")
