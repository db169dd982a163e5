// Package store provides storage backends for block state.
package store

import (
	"context"
	"time"
)

// BlockStore defines the interface for blocklist storage.
type BlockStore interface {
	// Put records a block for the identifier until the given time.
	Put(ctx context.Context, identifier string, until time.Time) error

	// Get returns the block expiry for the identifier. The second
	// return value is false when no block is recorded.
	Get(ctx context.Context, identifier string) (time.Time, bool, error)

	// Delete removes the block for the identifier.
	Delete(ctx context.Context, identifier string) error

	// List returns all recorded blocks with their expiry times.
	List(ctx context.Context) (map[string]time.Time, error)

	// Close closes the store and releases resources.
	Close() error
}
