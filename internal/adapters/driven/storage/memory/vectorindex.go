package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/tenk/internal/adapters/driven/storage/vecscore"
	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

type storedVector struct {
	record    driven.VectorRecord
	magnitude float32
}

// VectorIndex is an in-memory brute-force implementation of driven.VectorIndex.
type VectorIndex struct {
	mu      sync.RWMutex
	vectors map[string]storedVector
	dims    int
	closed  bool
}

// NewVectorIndex creates an empty in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{vectors: make(map[string]storedVector)}
}

// Upsert validates every record before storing any of them.
func (v *VectorIndex) Upsert(_ context.Context, records ...driven.VectorRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.ErrIndexUnavailable
	}
	if len(records) == 0 {
		return nil
	}

	dims := v.dims
	if len(v.vectors) == 0 {
		dims = len(records[0].Vector)
	}
	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %s", domain.ErrInvalidInput, r.ChunkID)
		}
		if err := vecscore.CheckDimensions(dims, len(r.Vector)); err != nil {
			return err
		}
	}

	v.dims = dims
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		v.vectors[r.ChunkID] = storedVector{record: r, magnitude: vecscore.Magnitude(r.Vector)}
	}
	return nil
}

// Delete removes vectors by chunk ID.
func (v *VectorIndex) Delete(_ context.Context, chunkIDs ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.ErrIndexUnavailable
	}
	for _, id := range chunkIDs {
		delete(v.vectors, id)
	}
	return nil
}

// DeleteDocument removes every vector of a document.
func (v *VectorIndex) DeleteDocument(_ context.Context, documentID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, domain.ErrIndexUnavailable
	}
	n := 0
	for id, sv := range v.vectors {
		if sv.record.DocumentID == documentID {
			delete(v.vectors, id)
			n++
		}
	}
	return n, nil
}

// Search ranks the vectors of matching filings by cosine similarity.
func (v *VectorIndex) Search(
	ctx context.Context, query []float32, filter domain.QueryFilter, k int,
) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, domain.ErrIndexUnavailable
	}
	if k <= 0 || len(v.vectors) == 0 {
		return nil, nil
	}
	if err := vecscore.CheckDimensions(v.dims, len(query)); err != nil {
		return nil, err
	}

	qMag := vecscore.Magnitude(query)
	var hits []driven.VectorHit
	for _, sv := range v.vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := sv.record
		if !filter.Matches(r.Ticker, r.Period) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Sequence:   r.Sequence,
			Similarity: vecscore.Similarity(query, qMag, r.Vector, sv.magnitude),
		})
	}
	return vecscore.Top(hits, k), nil
}

// Count returns the number of vectors stored for a document.
func (v *VectorIndex) Count(_ context.Context, documentID string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return 0, domain.ErrIndexUnavailable
	}
	n := 0
	for _, sv := range v.vectors {
		if sv.record.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

// Close marks the index unavailable.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}
