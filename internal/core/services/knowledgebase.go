package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
	"github.com/custodia-labs/tenk/internal/core/ports/driving"
	"github.com/custodia-labs/tenk/internal/logger"
)

// Ensure KnowledgeBaseService implements the interface.
var _ driving.KnowledgeBase = (*KnowledgeBaseService)(nil)

// KnowledgeBaseService lists, inspects and deletes documents, keeping the
// document store and the vector index consistent.
type KnowledgeBaseService struct {
	docStore driven.DocumentStore
	index    driven.VectorIndex
	leases   driven.LeaseManager
	settings domain.AppSettings
}

// NewKnowledgeBaseService creates a new knowledge base service.
func NewKnowledgeBaseService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	leases driven.LeaseManager,
	settings domain.AppSettings,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		docStore: docStore,
		index:    index,
		leases:   leases,
		settings: settings,
	}
}

// List returns every document ordered by ticker, then newest period first.
func (k *KnowledgeBaseService) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	docs, err := k.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Get retrieves a document by ID.
func (k *KnowledgeBaseService) Get(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := k.docStore.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Details returns the document with stored and indexed chunk counts.
func (k *KnowledgeBaseService) Details(ctx context.Context, id string) (*domain.DocumentDetails, error) {
	doc, err := k.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stored, err := k.docStore.CountChunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	ictx, cancel := withTimeout(ctx, k.settings.Timeouts.Index)
	defer cancel()
	indexed, err := k.index.Count(ictx, id)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}

	return &domain.DocumentDetails{
		Document:     *doc,
		StoredChunks: stored,
		IndexedCount: indexed,
	}, nil
}

// Verify reports whether the document's status agrees with the number of
// chunks in both stores.
func (k *KnowledgeBaseService) Verify(ctx context.Context, id string) (bool, error) {
	details, err := k.Details(ctx, id)
	if err != nil {
		return false, err
	}
	if !details.Consistent() {
		logger.Warn("document %s inconsistent: status=%s chunks=%d stored=%d indexed=%d",
			id, details.Document.Status, details.Document.ChunkCount, details.StoredChunks, details.IndexedCount)
		return false, nil
	}
	return true, nil
}

// Original returns the uploaded bytes and filename.
func (k *KnowledgeBaseService) Original(ctx context.Context, id string) ([]byte, string, error) {
	doc, err := k.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if len(doc.Original) == 0 {
		return nil, "", fmt.Errorf("original upload for %s: %w", id, domain.ErrNotFound)
	}
	return doc.Original, doc.Filename, nil
}

// Delete removes the document's vectors, confirms none remain, then removes
// the record and its chunks. It runs under the filing lease.
//
// When vector removal fails the record is untouched and the error is a
// *domain.DeleteError; calling Delete again is safe.
func (k *KnowledgeBaseService) Delete(ctx context.Context, id string) error {
	doc, err := k.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, release, err := acquireLease(ctx, k.leases, filingLeaseKey(doc.Key()), k.settings.Lease.TTL, k.settings.Lease.Poll)
	if err != nil {
		return err
	}
	defer release()

	// Another writer may have removed it while we waited.
	if _, err := k.Get(ctx, id); err != nil {
		return err
	}
	return k.deleteLocked(ctx, id)
}

// deleteLocked removes a document. The caller holds the filing lease.
func (k *KnowledgeBaseService) deleteLocked(ctx context.Context, id string) error {
	ictx, cancel := withTimeout(ctx, k.settings.Timeouts.Index)
	defer cancel()

	removed, err := k.index.DeleteDocument(ictx, id)
	if err != nil {
		remaining, cerr := k.index.Count(ictx, id)
		if cerr != nil {
			remaining = -1
		}
		logger.Warn("delete %s: vector removal failed, %d vectors remain: %v", id, remaining, err)
		return &domain.DeleteError{DocumentID: id, Remaining: remaining, Err: err}
	}

	remaining, err := k.index.Count(ictx, id)
	if err != nil {
		return &domain.DeleteError{DocumentID: id, Remaining: -1, Err: err}
	}
	if remaining != 0 {
		return &domain.DeleteError{
			DocumentID: id,
			Remaining:  remaining,
			Err:        fmt.Errorf("%d vectors survived removal", remaining),
		}
	}

	if err := k.docStore.DeleteDocument(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete document record %s: %w", id, err)
	}

	logger.Info("deleted document %s (%d vectors)", id, removed)
	return nil
}

// purgeFailed removes failed documents recorded for key. Failed documents
// own no vectors, but any stragglers from an interrupted rollback go too.
// The caller holds the filing lease.
func (k *KnowledgeBaseService) purgeFailed(ctx context.Context, docs []domain.DocumentSummary) error {
	for _, d := range docs {
		if d.Status != domain.StatusFailed {
			continue
		}
		if err := k.deleteLocked(ctx, d.ID); err != nil {
			return fmt.Errorf("purge failed document %s: %w", d.ID, err)
		}
		logger.Debug("purged failed document %s", d.ID)
	}
	return nil
}
