package store

import "context"

// Backend is an optional key-value persistence layer behind the retained
// table. Keys are topic names; values are opaque encoded records.
type Backend interface {
	// Save stores or updates a record by key
	Save(ctx context.Context, key string, value []byte) error

	// Load retrieves a record by key
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes a record by key
	Delete(ctx context.Context, key string) error

	// List returns all keys
	List(ctx context.Context) ([]string, error)

	// Close closes the backend
	Close() error
}
