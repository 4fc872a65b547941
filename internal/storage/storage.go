// Package storage defines the interface for blob storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider, and the
// filesystem implementation serves local development without credentials.
package storage

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/google/uuid"
)

// ErrWrite indicates the backend failed to durably store an object
// (I/O failure, quota exhaustion, rejected credentials).
var ErrWrite = errors.New("storage: write failed")

// ErrUnavailable indicates the backend could not be reached at all.
// It is distinct from "object does not exist".
var ErrUnavailable = errors.New("storage: backend unavailable")

// Storage is the interface for uploading and retrieving blobs. All methods
// are safe for concurrent use with distinct keys.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Exists reports whether an object is stored under key. A false result
	// with a nil error means the backend was reached and the key is absent.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object identified by key. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	// Resolving it never requires the backend's credentials.
	PublicURL(key string) string
}

// NewKey generates a collision-resistant storage key under prefix,
// preserving the original filename's extension: "images/<uuid><ext>".
func NewKey(prefix, filename string) string {
	return path.Join(prefix, uuid.NewString()+path.Ext(filename))
}
