// Package blobstore abstracts where sealed artifacts are archived.
//
// After a run finishes, outputs and their completeness markers can be copied
// to durable storage (a local directory, S3, or any S3-compatible endpoint)
// for sharing between machines. The engine itself only ever writes to the
// local working directory; archiving is a separate, explicit step.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for immutable artifact blobs.
type Store interface {
	// Put writes a blob atomically under name, replacing any existing blob.
	Put(ctx context.Context, name string, data []byte) error
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns the blob names under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
