// Package domain defines the core business entities for tenk.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested 10-K filing and its extracted Markdown
//   - Chunk: A retrieval unit cut from a document's Markdown
//   - FilingKey: The (ticker, year, quarter) identity of a filing
//   - QueryFilter: The tickers and filing periods a question is scoped to
//   - Session: An explicit, caller-owned chat history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
