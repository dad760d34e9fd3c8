package domain

import (
	"fmt"
	"time"
)

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

// Document lifecycle states.
const (
	// StatusPending is set when the record is created, before extraction completes.
	StatusPending DocumentStatus = "pending"

	// StatusExtracted means Markdown is stored but no vectors exist yet.
	StatusExtracted DocumentStatus = "extracted"

	// StatusIndexed means every chunk has a vector in the index.
	StatusIndexed DocumentStatus = "indexed"

	// StatusFailed means ingestion aborted; the document owns no chunks or vectors.
	StatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusExtracted, StatusIndexed, StatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether the document occupies its filing key.
// Failed documents never block a new ingestion of the same filing.
func (s DocumentStatus) IsActive() bool {
	return s.IsValid() && s != StatusFailed
}

// Document is an ingested filing.
// It is the authoritative record of what has been ingested.
type Document struct {
	// ID is assigned at ingestion.
	ID string

	// Ticker is the upper-cased company symbol.
	Ticker string

	// Period is the fiscal year and quarter the filing reports on.
	Period FilingPeriod

	// Filename is the original upload name.
	Filename string

	// MIMEType is the detected type of the original upload.
	MIMEType string

	// Content is the extracted Markdown. Chunk offsets index into it.
	Content string

	// Original holds the raw upload bytes.
	Original []byte

	// Status is the pipeline state.
	Status DocumentStatus

	// FailureReason explains a failed status.
	FailureReason string

	// ChunkCount is the number of chunks produced for an indexed document.
	ChunkCount int

	// IngestedAt is when the record was created.
	IngestedAt time.Time

	// UpdatedAt is the last status change.
	UpdatedAt time.Time
}

// Key returns the filing key the document occupies.
func (d *Document) Key() FilingKey {
	return FilingKey{Ticker: d.Ticker, Period: d.Period}
}

// SourceLabel names the document in citations, e.g. "AAPL-2023Q4.md".
func (d *Document) SourceLabel() string {
	return SourceLabel(d.Ticker, d.Period)
}

// Summary returns the listing view of the document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		Ticker:     d.Ticker,
		Period:     d.Period,
		Filename:   d.Filename,
		Status:     d.Status,
		ChunkCount: d.ChunkCount,
		IngestedAt: d.IngestedAt,
	}
}

// SourceLabel builds the citation label for a filing.
func SourceLabel(ticker string, period FilingPeriod) string {
	return fmt.Sprintf("%s-%s.md", ticker, period.Compact())
}

// DocumentSummary is a document without its content.
type DocumentSummary struct {
	ID         string
	Ticker     string
	Period     FilingPeriod
	Filename   string
	Status     DocumentStatus
	ChunkCount int
	IngestedAt time.Time
}

// DocumentDetails combines the stored record with consistency counters.
type DocumentDetails struct {
	Document     Document
	StoredChunks int
	IndexedCount int
}

// Consistent reports whether the indexed status agrees with the vector count.
func (d DocumentDetails) Consistent() bool {
	if d.Document.Status == StatusIndexed {
		return d.IndexedCount == d.Document.ChunkCount && d.StoredChunks == d.Document.ChunkCount
	}
	return d.IndexedCount == 0
}

// Chunk is a bounded span of a document's Markdown.
// Chunks are immutable once written.
type Chunk struct {
	// ID is "<documentID>:<sequence>", unique within the document.
	ID string

	// DocumentID references the parent document.
	DocumentID string

	// Sequence is the zero-based position within the document.
	Sequence int

	// Start and End are byte offsets into the document content.
	Start int
	End   int

	// Content is the chunk text, equal to Document.Content[Start:End].
	Content string

	// Section is the nearest preceding Markdown heading, if any.
	Section string

	// Embedding is the vector produced for Content.
	Embedding []float32
}

// ChunkID builds the stable chunk identifier.
func ChunkID(documentID string, sequence int) string {
	return fmt.Sprintf("%s:%04d", documentID, sequence)
}

// Span is a chunker output before identifiers are assigned.
type Span struct {
	Sequence int
	Start    int
	End      int
	Text     string
}

// RawFile is an upload as received from the caller.
type RawFile struct {
	// Filename is used for MIME detection and display.
	Filename string

	// MIMEType overrides detection when set.
	MIMEType string

	// Data is the file content.
	Data []byte
}

// Draft is an extracted upload awaiting confirmation.
// Nothing is persisted until the draft is committed.
type Draft struct {
	Metadata    FilingMetadata
	File        RawFile
	Markdown    string
	ExtractedAt time.Time
}
