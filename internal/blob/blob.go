// Package blob provides a thin S3-like byte store abstraction used for
// columnar genotype storage. Semantics mirror a minimal subset of S3 so the
// S3/MinIO driver is nearly 1:1 while the filesystem and memory drivers
// emulate them.
package blob

import (
	"context"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the byte transport under the columnar genotype source. Keys map
// to object keys directly; missing keys surface as os.ErrNotExist-style
// errors from every driver.
type Store interface {
	// Put stores a blob at key, overwriting any previous content.
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	// Get retrieves the blob contents and metadata.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes a blob. Returns (false, nil) if not found.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs whose key has the provided prefix, ordered by key
	// ascending.
	List(ctx context.Context, prefix string) ([]Info, error)
	// Driver returns the configured backend driver identifier.
	Driver() Driver
}

// ReadAll fetches a blob's full contents.
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
