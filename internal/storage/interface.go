package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore holds archived batch reports.
type ObjectStore interface {
	// Put writes an object, replacing any existing one under key.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// Get reads an object. Returns ErrObjectNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)

	// URL returns a link operators can open to read the object.
	URL(ctx context.Context, key string) (string, error)

	// EnsureBucket prepares the backing container.
	EnsureBucket(ctx context.Context) error
}
