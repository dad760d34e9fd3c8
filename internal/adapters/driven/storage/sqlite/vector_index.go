package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/custodia-labs/tenk/internal/adapters/driven/storage/vecscore"
	"github.com/custodia-labs/tenk/internal/core/domain"
	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex over the vectors table.
// Search scans the filtered rows and ranks them in Go; the filter columns
// are indexed so only the selected filings are read.
type vectorIndex struct {
	store  *Store
	closed atomic.Bool
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

func (v *vectorIndex) available() error {
	if v.closed.Load() || v.store.closed.Load() {
		return domain.ErrIndexUnavailable
	}
	return nil
}

// wrap marks storage failures as an unavailable index.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
}

// Upsert writes all records in one transaction.
func (v *vectorIndex) Upsert(ctx context.Context, records ...driven.VectorRecord) error {
	if err := v.available(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	dims, err := v.dimensions(ctx)
	if err != nil {
		return err
	}
	if dims == 0 {
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

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (chunk_id, document_id, ticker, year, quarter, sequence, dims, magnitude, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			ticker = excluded.ticker,
			year = excluded.year,
			quarter = excluded.quarter,
			sequence = excluded.sequence,
			dims = excluded.dims,
			magnitude = excluded.magnitude,
			embedding = excluded.embedding
	`)
	if err != nil {
		return wrap("preparing statement", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.DocumentID, r.Ticker, r.Period.Year,
			int(r.Period.Quarter), r.Sequence, len(r.Vector), vecscore.Magnitude(r.Vector),
			float32SliceToBytes(r.Vector)); err != nil {
			return wrap("saving vector "+r.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap("committing transaction", err)
	}
	return nil
}

// Delete removes vectors by chunk ID.
func (v *vectorIndex) Delete(ctx context.Context, chunkIDs ...string) error {
	if err := v.available(); err != nil {
		return err
	}
	if len(chunkIDs) == 0 {
		return nil
	}

	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}
	if _, err := v.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE chunk_id IN ("+placeholders(len(chunkIDs))+")", args...); err != nil {
		return wrap("deleting vectors", err)
	}
	return nil
}

// DeleteDocument removes every vector of a document.
func (v *vectorIndex) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := v.available(); err != nil {
		return 0, err
	}
	res, err := v.store.db.ExecContext(ctx, "DELETE FROM vectors WHERE document_id = ?", documentID)
	if err != nil {
		return 0, wrap("deleting document vectors", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("reading affected rows", err)
	}
	return int(n), nil
}

// Search ranks vectors of the filtered filings by cosine similarity.
func (v *vectorIndex) Search(
	ctx context.Context, query []float32, filter domain.QueryFilter, k int,
) ([]driven.VectorHit, error) {
	if err := v.available(); err != nil {
		return nil, err
	}
	if len(filter.Tickers) == 0 || len(filter.Periods) == 0 || k <= 0 {
		return nil, nil
	}

	var where strings.Builder
	args := make([]any, 0, len(filter.Tickers)+2*len(filter.Periods))
	where.WriteString("ticker IN (" + placeholders(len(filter.Tickers)) + ") AND (")
	for _, t := range filter.Tickers {
		args = append(args, t)
	}
	for i, p := range filter.Periods {
		if i > 0 {
			where.WriteString(" OR ")
		}
		where.WriteString("(year = ? AND quarter = ?)")
		args = append(args, p.Year, int(p.Quarter))
	}
	where.WriteString(")")

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, sequence, dims, magnitude, embedding
		FROM vectors WHERE `+where.String(), args...)
	if err != nil {
		return nil, wrap("querying vectors", err)
	}
	defer rows.Close()

	qMag := vecscore.Magnitude(query)
	var hits []driven.VectorHit
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var hit driven.VectorHit
		var dims int
		var mag float64
		var blob []byte
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Sequence, &dims, &mag, &blob); err != nil {
			return nil, wrap("scanning vector", err)
		}
		if err := vecscore.CheckDimensions(dims, len(query)); err != nil {
			return nil, err
		}
		hit.Similarity = vecscore.Similarity(query, qMag, bytesToFloat32Slice(blob), float32(mag))
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterating vectors", err)
	}

	return vecscore.Top(hits, k), nil
}

// Count returns the number of vectors stored for a document.
func (v *vectorIndex) Count(ctx context.Context, documentID string) (int, error) {
	if err := v.available(); err != nil {
		return 0, err
	}
	var n int
	if err := v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vectors WHERE document_id = ?", documentID).Scan(&n); err != nil {
		return 0, wrap("counting vectors", err)
	}
	return n, nil
}

// Close marks the index unavailable. The connection belongs to the Store.
func (v *vectorIndex) Close() error {
	v.closed.Store(true)
	return nil
}

// dimensions returns the width of stored vectors, or 0 for an empty index.
func (v *vectorIndex) dimensions(ctx context.Context) (int, error) {
	var dims int
	if err := v.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(dims), 0) FROM vectors").Scan(&dims); err != nil {
		return 0, wrap("reading dimensions", err)
	}
	return dims, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
