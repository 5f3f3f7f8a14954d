// Package entity defines the record model shared by the selection,
// batch, and queue layers: record identity, the store contract, the
// callback registry, and the error taxonomy for a bulk run.
package entity

import (
	"context"
)

// ID uniquely identifies one record within an entity-type namespace.
type ID int64

// Record is a single stored entity row. Fields carries the flat
// field-name to value mapping the query engines filter on.
type Record struct {
	ID     ID
	Type   string
	Bundle string
	Fields map[string]string
}

// Store loads records in batches. Implementations must return entries
// for every requested ID that still exists; IDs with no backing record
// are silently absent from the result map.
type Store interface {
	Load(ctx context.Context, entityType string, ids []ID) (map[ID]Record, error)
}

// Schema answers structural questions about the record store so that
// selections can be validated before any query runs.
type Schema interface {
	// HasType reports whether the entity type is known to the store.
	HasType(entityType string) bool

	// HasBundle reports whether the bundle exists for the entity type.
	HasBundle(entityType, bundle string) bool
}
