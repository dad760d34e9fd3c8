// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - Extractor: Turns an upload (PDF, HTML, Markdown) into normalised Markdown
//   - ExtractorRegistry: Selects the extractor for an upload's MIME type
//   - ChunkPipeline: Splits Markdown into chunks and annotates them
//   - EmbeddingService: Converts text to fixed-dimension vectors
//   - VectorIndex: Stores chunk vectors with filing metadata, filtered search
//   - DocumentStore: Authoritative record of ingested documents and chunks
//   - LLMService: Completes prompts for answer synthesis
//   - LeaseManager: Serialises writers per filing key
//   - ConfigStore: Application configuration
//   - PromptStore: User-editable prompt templates
//
// Only the ingestion pipeline and the knowledge base manager write to
// VectorIndex and DocumentStore.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or postprocessor package
package driven
