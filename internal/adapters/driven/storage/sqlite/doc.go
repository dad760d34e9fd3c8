// Package sqlite provides a unified SQLite-based implementation of the
// document store and the vector index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements both interfaces
// through a single database connection:
//
//   - DocumentStore: filing records, extracted Markdown, original uploads, chunks
//   - VectorIndex: chunk vectors with ticker and period columns for filtering
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. At most one non-failed document may hold a filing key;
// a partial unique index enforces it.
//
// # Data Location
//
// By default, the database is stored at ~/.tenk/data/tenk.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
