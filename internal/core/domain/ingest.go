package domain

import "time"

// IngestStage is a checkpoint reached by the ingestion pipeline.
type IngestStage string

// Ingestion checkpoints, reported in order.
const (
	StageExtracted  IngestStage = "extracted"
	StageChunked    IngestStage = "chunked"
	StageEmbedded   IngestStage = "embedded"
	StageIndexed    IngestStage = "indexed"
	StageFailed     IngestStage = "failed"
	StageRolledBack IngestStage = "rolled_back"
)

// IngestEvent is emitted at each checkpoint.
// For StageEmbedded, Done and Total count embedded chunks.
type IngestEvent struct {
	DocumentID string
	Key        FilingKey
	Stage      IngestStage
	Chunks     int
	Done       int
	Total      int
	Err        error
	At         time.Time
}

// DuplicatePolicy decides what happens when a filing is ingested twice.
type DuplicatePolicy string

// Duplicate policies.
const (
	// DuplicateReject fails with ErrAlreadyExists while an active document holds the key.
	DuplicateReject DuplicatePolicy = "reject"

	// DuplicateReplace deletes the active document before ingesting the new one.
	DuplicateReplace DuplicatePolicy = "replace"
)

// IsValid returns true if the policy is recognised.
func (p DuplicatePolicy) IsValid() bool {
	return p == DuplicateReject || p == DuplicateReplace
}

// IngestOptions tunes a single ingestion.
type IngestOptions struct {
	// Policy overrides the configured duplicate policy when set.
	Policy DuplicatePolicy

	// Progress receives checkpoint events. It is called synchronously.
	Progress func(IngestEvent)
}
