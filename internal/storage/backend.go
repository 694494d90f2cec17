// Package storage defines the Backend interface for flat-key object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
// Delete-of-missing is treated as a soft success by all callers above this
// layer, since recursive and bulk flows race with the store's own cleanup.
var ErrNotFound = errors.New("storage: key not found")

// Entry describes one immediate child of a listed prefix.
// The directory flag comes from the store itself, not from key inspection.
type Entry struct {
	Name       string
	IsDir      bool
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Backend is the interface for object storage backends. The store knows only
// flat keys and three primitives (PUT, DELETE, prefix-LIST); folder semantics
// are emulated above this layer.
//
// No operation retries on its own; retry policy belongs to callers.
type Backend interface {
	// Put stores body at key, overwriting any existing object.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Get reads the full object at key. Backends whose store exposes reads
	// only through a CDN-fronted URL fetch from that URL.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete removes the object at key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error

	// List enumerates the immediate children of prefix (not recursive).
	List(ctx context.Context, prefix string) ([]Entry, error)

	// PublicURL derives the public delivery URL for key. Pure string
	// derivation, never a network call or an existence check.
	PublicURL(key string) string

	// Type returns the backend type identifier ("bunny", "s3", "local", "memory").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
