// Package storage abstracts where documentation bundles live. Backends
// implement the Storage interface and register themselves with the factory
// from their own package's init():
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The server imports each backend with a blank import to trigger init(), so
// adding a backend needs no factory changes, only a blank import in the
// router wiring.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is implemented by every bundle store (local disk, S3, GCS, Azure).
// Paths are backend-relative object keys such as "bundles/<project>/<version>".
type Storage interface {
	// Upload stores an object and reports its final path, size, and checksum.
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download returns a reader over the stored object.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object.
	Delete(ctx context.Context, path string) error

	// GetURL returns a download URL. Cloud backends return a signed URL valid
	// for ttl; the local backend returns a server-relative serving path.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata fetches object metadata without reading the content.
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// UploadResult describes a stored bundle.
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string // SHA-256 of the content, lowercase hex
}

// FileMetadata describes a stored bundle without its content.
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string
	LastModified time.Time
}
