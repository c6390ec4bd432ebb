// Package storage defines the interface for persisting shared files.
// Swap implementations by changing the concrete type injected at startup:
// LocalStorage keeps files in a flat directory, MinioStorage in any
// S3-compatible bucket (MinIO, AWS S3, ArvanCloud).
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that could escape the storage namespace.
var ErrInvalidKey = errors.New("invalid object key")

// Object is an open stored file. Callers must Close it.
type Object struct {
	io.ReadCloser
	Size    int64
	ModTime time.Time
}

// Storage is the interface for saving and retrieving shared files.
type Storage interface {
	// Save streams data to the store under the given key and returns the number of bytes written.
	// size is a hint; pass -1 when unknown.
	Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (int64, error)
	// Open returns a reader for the object at key, or ErrNotFound.
	Open(ctx context.Context, key string) (*Object, error)
	// Delete removes the object at key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
}

// ValidateKey rejects empty keys, path separators and dot segments.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return ErrInvalidKey
	}
	return nil
}

// ctxReader stops a copy as soon as its context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
