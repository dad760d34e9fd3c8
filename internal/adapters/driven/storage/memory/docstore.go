package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Values are copied on the way in and out so callers never share state.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Status.IsActive() {
		if holder, ok := s.activeHolder(doc.Key(), doc.ID); ok {
			return fmt.Errorf("%w: filing %s held by %s", domain.ErrAlreadyExists, doc.Key(), holder)
		}
	}

	now := time.Now().UTC()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	stored := *doc
	stored.Original = slices.Clone(doc.Original)
	s.documents[doc.ID] = stored
	return nil
}

// UpdateStatus records a status transition.
func (s *DocumentStore) UpdateStatus(
	_ context.Context, id string, status domain.DocumentStatus, reason string, chunkCount int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if status.IsActive() {
		if holder, ok := s.activeHolder(doc.Key(), id); ok {
			return fmt.Errorf("%w: filing %s held by %s", domain.ErrAlreadyExists, doc.Key(), holder)
		}
	}

	doc.Status = status
	doc.FailureReason = reason
	doc.ChunkCount = chunkCount
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// activeHolder returns the ID of another active document holding key.
// Caller must hold the lock.
func (s *DocumentStore) activeHolder(key domain.FilingKey, except string) (string, bool) {
	for id, d := range s.documents {
		if id != except && d.Status.IsActive() && d.Key() == key {
			return id, true
		}
	}
	return "", false
}

// SaveChunks stores chunks. Chunks for an unknown document are rejected.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if _, ok := s.documents[c.DocumentID]; !ok {
			return fmt.Errorf("saving chunk %s: document %s: %w", c.ID, c.DocumentID, domain.ErrNotFound)
		}
	}

	for _, c := range chunks {
		c.Embedding = nil
		existing := s.chunks[c.DocumentID]
		i := slices.IndexFunc(existing, func(e domain.Chunk) bool { return e.ID == c.ID })
		if i >= 0 {
			existing[i] = c
		} else {
			existing = append(existing, c)
		}
		s.chunks[c.DocumentID] = existing
	}
	for id := range s.chunks {
		sort.Slice(s.chunks[id], func(i, j int) bool { return s.chunks[id][i].Sequence < s.chunks[id][j].Sequence })
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc.Original = slices.Clone(doc.Original)
	return &doc, nil
}

// GetChunks retrieves all chunks for a document ordered by sequence.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chunks[documentID]), nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// CountChunks returns the number of stored chunks for a document.
func (s *DocumentStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

// DeleteChunks removes every chunk of a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// ListDocuments returns every document ordered by ticker, then newest period first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DocumentSummary, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		if a.Period != b.Period {
			return b.Period.Before(a.Period)
		}
		if !a.IngestedAt.Equal(b.IngestedAt) {
			return a.IngestedAt.After(b.IngestedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// FindByKey returns every document recorded for a filing key.
func (s *DocumentStore) FindByKey(_ context.Context, key domain.FilingKey) ([]domain.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DocumentSummary
	for _, d := range s.documents {
		if d.Key() == key {
			out = append(out, d.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngestedAt.Before(out[j].IngestedAt) })
	return out, nil
}
