// Package backend provides resilient access to the remote relational
// backend that stores resume data.
//
// The package is built from three pieces:
//   - Handle: an opaque client capable of issuing table-scoped queries
//     (RESTHandle for PostgREST-style HTTPS backends, SQLHandle for
//     direct Postgres access)
//   - Pool: a fixed-size round-robin set of handles with a background
//     health check that rebuilds the whole set on failure
//   - Executor: classification-driven retry with exponential backoff,
//     acquiring a fresh handle from the pool per attempt
package backend

import "context"

// Row is a single table row keyed by column name.
type Row map[string]any

// Filter holds equality conditions for a query, keyed by column name.
type Filter map[string]any

// Handle is an opaque client for the backend query capability. Callers
// must not cache a Handle beyond a single call attempt: a pool rebuild
// invalidates previously acquired handles.
type Handle interface {
	// Select returns rows matching filter, ordered by orderBy
	// (e.g. "position asc") when non-empty.
	Select(ctx context.Context, table string, filter Filter, orderBy string) ([]Row, error)

	// Upsert inserts row, updating in place on a conflictKey collision.
	Upsert(ctx context.Context, table string, row Row, conflictKey string) error

	// Insert bulk-inserts rows.
	Insert(ctx context.Context, table string, rows []Row) error

	// Delete removes all rows matching filter.
	Delete(ctx context.Context, table string, filter Filter) error

	// Ping issues a cheap reachability probe.
	Ping(ctx context.Context) error

	// Close releases resources held by the handle.
	Close() error
}

// Factory produces configured handles for the pool.
type Factory interface {
	New() (Handle, error)
}
