package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
	"github.com/custodia-labs/tenk/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService turns uploads into indexed documents.
//
// Every ingestion runs under the lease of its filing key. A failure after
// the record is created removes whatever vectors and chunks were written,
// leaving the record in status failed.
type IngestionService struct {
	docStore   driven.DocumentStore
	index      driven.VectorIndex
	extractors driven.ExtractorRegistry
	pipeline   driven.ChunkPipeline
	embedder   driven.EmbeddingService
	leases     driven.LeaseManager
	kb         *KnowledgeBaseService
	settings   domain.AppSettings

	now   func() time.Time
	newID func() string
}

// NewIngestionService creates a new ingestion service. Replacing a filing
// deletes the previous document through kb, so kb must share docStore,
// index and leases.
func NewIngestionService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	extractors driven.ExtractorRegistry,
	pipeline driven.ChunkPipeline,
	embedder driven.EmbeddingService,
	leases driven.LeaseManager,
	kb *KnowledgeBaseService,
	settings domain.AppSettings,
) *IngestionService {
	return &IngestionService{
		docStore:   docStore,
		index:      index,
		extractors: extractors,
		pipeline:   pipeline,
		embedder:   embedder,
		leases:     leases,
		kb:         kb,
		settings:   settings,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Preview validates metadata and extracts Markdown without persisting anything.
func (s *IngestionService) Preview(
	ctx context.Context, file domain.RawFile, meta domain.FilingMetadata,
) (*domain.Draft, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUpload(&file); err != nil {
		return nil, err
	}

	markdown, err := s.extract(ctx, &file)
	if err != nil {
		return nil, err
	}

	return &domain.Draft{
		Metadata:    meta,
		File:        file,
		Markdown:    markdown,
		ExtractedAt: s.now(),
	}, nil
}

// Commit chunks, embeds and indexes a previewed draft.
func (s *IngestionService) Commit(
	ctx context.Context, draft *domain.Draft, opts domain.IngestOptions,
) (*domain.Document, error) {
	if draft == nil {
		return nil, fmt.Errorf("%w: draft is nil", domain.ErrInvalidInput)
	}
	meta := draft.Metadata
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft.Markdown) == "" {
		return nil, &domain.ExtractionError{Reason: "no text extracted"}
	}
	return s.run(ctx, meta, draft.File, draft.Markdown, opts)
}

// Ingest runs extraction and Commit in one call.
func (s *IngestionService) Ingest(
	ctx context.Context, file domain.RawFile, meta domain.FilingMetadata, opts domain.IngestOptions,
) (*domain.Document, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkUpload(&file); err != nil {
		return nil, err
	}
	return s.run(ctx, meta, file, "", opts)
}

// run executes the pipeline for a validated upload. An empty markdown
// means extraction still has to happen.
func (s *IngestionService) run(
	ctx context.Context, meta domain.FilingMetadata, file domain.RawFile, markdown string, opts domain.IngestOptions,
) (*domain.Document, error) {
	policy := opts.Policy
	if policy == "" {
		policy = s.settings.Ingestion.DuplicatePolicy
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w: duplicate policy %q", domain.ErrInvalidInput, policy)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	key := meta.Key()
	defer logger.Timed("ingest " + key.String())()

	ctx, release, err := acquireLease(ctx, s.leases, filingLeaseKey(key), s.settings.Lease.TTL, s.settings.Lease.Poll)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.resolveDuplicate(ctx, key, policy); err != nil {
		return nil, err
	}

	now := s.now()
	doc := &domain.Document{
		ID:         s.newID(),
		Ticker:     key.Ticker,
		Period:     key.Period,
		Filename:   file.Filename,
		MIMEType:   s.extractors.DetectMIMEType(&file),
		Original:   file.Data,
		Status:     domain.StatusPending,
		IngestedAt: now,
		UpdatedAt:  now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document for %s: %w", key, err)
	}
	logger.Debug("created document %s for %s", doc.ID, key)

	if markdown == "" {
		markdown, err = s.extract(ctx, &file)
		if err != nil {
			return nil, s.fail(ctx, doc, err, opts)
		}
	}

	doc.Content = markdown
	doc.Status = domain.StatusExtracted
	doc.UpdatedAt = s.now()
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("store extracted text: %w", err), opts)
	}
	s.emit(opts, doc, domain.IngestEvent{Stage: domain.StageExtracted})

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("chunk: %w", err), opts)
	}
	if len(chunks) == 0 {
		return nil, s.fail(ctx, doc, fmt.Errorf("chunk: %w: no chunks produced", domain.ErrEmptyInput), opts)
	}
	s.emit(opts, doc, domain.IngestEvent{Stage: domain.StageChunked, Chunks: len(chunks)})

	if err := s.embed(ctx, doc, chunks, opts); err != nil {
		return nil, s.fail(ctx, doc, err, opts)
	}

	if err := s.write(ctx, doc, chunks); err != nil {
		return nil, s.fail(ctx, doc, err, opts)
	}

	doc.Status = domain.StatusIndexed
	doc.ChunkCount = len(chunks)
	doc.UpdatedAt = s.now()
	s.emit(opts, doc, domain.IngestEvent{Stage: domain.StageIndexed, Chunks: len(chunks)})
	logger.Info("indexed %s as document %s (%d chunks)", key, doc.ID, len(chunks))

	return doc, nil
}

// resolveDuplicate applies the duplicate policy. Failed documents for the
// key are always purged first.
func (s *IngestionService) resolveDuplicate(ctx context.Context, key domain.FilingKey, policy domain.DuplicatePolicy) error {
	existing, err := s.docStore.FindByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("look up %s: %w", key, err)
	}
	if err := s.kb.purgeFailed(ctx, existing); err != nil {
		return err
	}

	for _, d := range existing {
		if !d.Status.IsActive() {
			continue
		}
		if policy == domain.DuplicateReject {
			return fmt.Errorf("%w: %s is held by document %s", domain.ErrAlreadyExists, key, d.ID)
		}
		logger.Info("replacing document %s for %s", d.ID, key)
		if err := s.kb.deleteLocked(ctx, d.ID); err != nil {
			return fmt.Errorf("replace document %s: %w", d.ID, err)
		}
	}
	return nil
}

// checkUpload rejects uploads no extractor can read before anything is written.
func (s *IngestionService) checkUpload(file *domain.RawFile) error {
	if len(file.Data) == 0 {
		return fmt.Errorf("%w: upload %q is empty", domain.ErrInvalidInput, file.Filename)
	}
	mt := s.extractors.DetectMIMEType(file)
	if !slices.Contains(s.extractors.SupportedMIMETypes(), mt) {
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedType, mt, file.Filename)
	}
	return nil
}

// extract runs the extractor under the extractor timeout.
func (s *IngestionService) extract(ctx context.Context, file *domain.RawFile) (string, error) {
	ectx, cancel := withTimeout(ctx, s.settings.Timeouts.Extractor)
	defer cancel()

	markdown, err := s.extractors.Extract(ectx, file)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("extract: %w", ctx.Err())
		}
		var extractErr *domain.ExtractionError
		if errors.As(err, &extractErr) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &domain.ExtractionError{Reason: "extractor timed out", Err: err}
		}
		return "", &domain.ExtractionError{Reason: "extractor error", Err: err}
	}
	if strings.TrimSpace(markdown) == "" {
		return "", &domain.ExtractionError{Reason: "no text extracted"}
	}
	return markdown, nil
}

// embed fills chunk embeddings batch by batch. When a batch fails, its
// chunks are retried one at a time so the error names the failing chunk.
func (s *IngestionService) embed(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, opts domain.IngestOptions) error {
	batchSize := max(1, s.settings.Embedding.BatchSize)

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vecs) != len(batch) {
			err = fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(batch))
		}
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("embed: %w", ctx.Err())
			}
			if len(batch) == 1 {
				return &domain.EmbeddingError{Sequence: batch[0].Sequence, Err: err}
			}
			logger.Debug("batch %d-%d failed (%v), embedding one at a time", start, end-1, err)
			if vecs, err = s.embedEach(ctx, batch); err != nil {
				return err
			}
		}

		for i := range batch {
			if len(vecs[i]) == 0 {
				return &domain.EmbeddingError{Sequence: batch[i].Sequence, Err: errors.New("empty vector")}
			}
			batch[i].Embedding = vecs[i]
		}
		s.emit(opts, doc, domain.IngestEvent{Stage: domain.StageEmbedded, Done: end, Total: len(chunks)})
	}
	return nil
}

func (s *IngestionService) embedEach(ctx context.Context, batch []domain.Chunk) ([][]float32, error) {
	vecs := make([][]float32, len(batch))
	for i, c := range batch {
		vec, err := s.embedder.Embed(ctx, c.Content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("embed: %w", ctx.Err())
			}
			return nil, &domain.EmbeddingError{Sequence: c.Sequence, Err: err}
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// write upserts every vector in one call, stores the chunks, confirms the
// index count and marks the document indexed.
func (s *IngestionService) write(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	records := make([]driven.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = driven.VectorRecord{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Ticker:     doc.Ticker,
			Period:     doc.Period,
			Sequence:   c.Sequence,
			Vector:     c.Embedding,
		}
	}

	ictx, cancel := withTimeout(ctx, s.settings.Timeouts.Index)
	defer cancel()

	if err := s.index.Upsert(ictx, records...); err != nil {
		return indexError("upsert vectors", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	count, err := s.index.Count(ictx, doc.ID)
	if err != nil {
		return indexError("count vectors", err)
	}
	if count != len(chunks) {
		return fmt.Errorf("%w: index holds %d of %d vectors for %s",
			domain.ErrIndexUnavailable, count, len(chunks), doc.ID)
	}

	if err := s.docStore.UpdateStatus(ctx, doc.ID, domain.StatusIndexed, "", len(chunks)); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	return nil
}

// fail rolls back vectors and chunks on a detached context, records the
// failure and returns the error for the caller.
func (s *IngestionService) fail(ctx context.Context, doc *domain.Document, cause error, opts domain.IngestOptions) error {
	reason := cause.Error()
	if ctxErr := ctx.Err(); ctxErr != nil {
		reason = "cancelled"
		if lost := context.Cause(ctx); errors.Is(lost, domain.ErrLeaseConflict) {
			reason = "write lease lost"
			cause = fmt.Errorf("ingestion aborted: %w", lost)
		} else if !errors.Is(cause, ctxErr) {
			cause = fmt.Errorf("ingestion cancelled: %w", ctxErr)
		}
	}

	timeout := s.settings.Timeouts.Index
	if timeout <= 0 {
		timeout = cleanupTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var rollbackErr error
	if n, err := s.index.DeleteDocument(cctx, doc.ID); err != nil {
		rollbackErr = fmt.Errorf("remove vectors: %w", err)
	} else if n > 0 {
		logger.Debug("rollback removed %d vectors of %s", n, doc.ID)
	}
	if err := s.docStore.DeleteChunks(cctx, doc.ID); err != nil {
		rollbackErr = errors.Join(rollbackErr, fmt.Errorf("remove chunks: %w", err))
	}
	if rollbackErr == nil {
		s.emit(opts, doc, domain.IngestEvent{Stage: domain.StageRolledBack})
	}

	if err := s.docStore.UpdateStatus(cctx, doc.ID, domain.StatusFailed, reason, 0); err != nil {
		rollbackErr = errors.Join(rollbackErr, fmt.Errorf("mark failed: %w", err))
	}
	doc.Status = domain.StatusFailed
	doc.FailureReason = reason
	doc.ChunkCount = 0

	logger.Warn("ingestion of %s failed: %s", doc.Key(), reason)
	if rollbackErr != nil {
		logger.Warn("rollback of %s incomplete: %v", doc.ID, rollbackErr)
		cause = errors.Join(cause, fmt.Errorf("rollback of %s: %w", doc.ID, rollbackErr))
	}

	s.emit(opts, doc, domain.IngestEvent{Stage: domain.StageFailed, Err: cause})
	return cause
}

func (s *IngestionService) emit(opts domain.IngestOptions, doc *domain.Document, ev domain.IngestEvent) {
	ev.DocumentID = doc.ID
	ev.Key = doc.Key()
	ev.At = s.now()
	logger.Debug("%s %s: %s", ev.Key, ev.DocumentID, ev.Stage)
	if opts.Progress != nil {
		opts.Progress(ev)
	}
}

// indexError tags a vector index failure with domain.ErrIndexUnavailable.
func indexError(op string, err error) error {
	if errors.Is(err, domain.ErrIndexUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexUnavailable, op, err)
}
