// Package blob defines the durable object store behind the manifest
// and derivative caches. The store is the system of record: the fast
// in-process tier in internal/cache only ever mirrors it.
package blob

import (
	"context"
	"time"
)

// Store is the durable blob store contract. Keys are flat strings
// ("<fingerprint>", "<fingerprint>.tif", "<fingerprint>.json").
type Store interface {
	// Exists checks key presence without transferring bytes.
	Exists(ctx context.Context, key string) (bool, error)
	// Get returns the stored bytes or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value at key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Ping(ctx context.Context) error
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
