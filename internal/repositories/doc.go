// Package repositories implements the SQLite-backed offline catalog cache.
//
// The in-memory entity cache is reference-counted and evicts aggressively;
// this package is the durable complement: metadata for every item that
// survives a fetch is written through best-effort, so previously seen tracks
// and collections stay browsable offline. Rows are keyed by catalog id and
// upserted, never soft-deleted; the catalog API is the source of truth.
//
// Key implementations:
//   - [TrackRepository] : per-track metadata with owner lookups
//   - [CollectionRepository] : collection metadata plus ordered track references
//   - [CatalogArchive] : the write-through adapter the store hands fetched items to
package repositories
