// Package lease holds the per-filing write lease managers.
//
// Every write to a filing (ingest, replace, delete) runs under a lease on
// its FilingKey, so two writers never interleave on the same filing while
// different filings proceed in parallel. The memory backend serves a single
// process; the redis backend serialises writers across processes.
package lease
