// Package vecscore scores and ranks stored vectors for the vector index
// implementations.
package vecscore

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/viant/vec/search"

	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

// Similarity returns the cosine similarity of q and v. The precomputed
// magnitudes only short-circuit zero vectors, which are similar to nothing.
// CosineDistance is the one distance call viant/vec exports on every
// architecture.
func Similarity(q []float32, qMag float32, v []float32, vMag float32) float64 {
	if qMag == 0 || vMag == 0 {
		return 0
	}
	return float64(1 - search.Float32s(q).CosineDistance(v))
}

// CheckDimensions fails when a vector does not match the index width.
func CheckDimensions(want, got int) error {
	if want != got {
		return fmt.Errorf("%w: vector has %d dimensions, index holds %d", domain.ErrInvalidInput, got, want)
	}
	return nil
}

// Compare orders hits by descending similarity, then ascending sequence,
// then chunk ID so results are deterministic.
func Compare(a, b driven.VectorHit) int {
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Sequence, b.Sequence); c != 0 {
		return c
	}
	return cmp.Compare(a.ChunkID, b.ChunkID)
}

// Top sorts hits and keeps the first k.
func Top(hits []driven.VectorHit, k int) []driven.VectorHit {
	slices.SortFunc(hits, Compare)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
