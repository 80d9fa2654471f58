// Package store provides the document store the tracker persists into.
// Documents are addressed by (namespace, collection, id); the namespace is
// the family code and is opaque to this package.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Delete when no document exists at the
// given address.
var ErrNotFound = errors.New("document not found")

// Record is one document returned by List.
type Record struct {
	ID   string
	Data []byte
}

// Store is a minimal document store. Writes to a single document are
// serialized last-writer-wins; there is no compare-and-swap.
type Store interface {
	// Get returns the raw document, or ErrNotFound.
	Get(ctx context.Context, namespace, collection, id string) ([]byte, error)

	// Set creates or fully replaces a document.
	Set(ctx context.Context, namespace, collection, id string, data []byte) error

	// Delete removes a document, returning ErrNotFound if it does not exist.
	Delete(ctx context.Context, namespace, collection, id string) error

	// List returns every document in a collection, ordered by id.
	List(ctx context.Context, namespace, collection string) ([]Record, error)

	// Subscribe registers fn for a single document. fn is invoked
	// immediately with the current snapshot (nil if absent) and again on
	// every subsequent Set or Delete; Delete passes nil. The returned
	// cancel func unregisters fn.
	Subscribe(namespace, collection, id string, fn func(data []byte)) (cancel func())
}
