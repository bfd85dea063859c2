// Package blobstore defines the port for storing uploaded images.
package blobstore

import (
	"context"
	"io"
)

// Store keeps binary objects grouped in buckets.
type Store interface {
	// Put writes r under bucket/path and returns the number of bytes stored.
	Put(ctx context.Context, bucket, path string, r io.Reader) (int64, error)
	// Delete removes bucket/path. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, path string) error
	// URL returns the public address of bucket/path.
	URL(bucket, path string) string
}
