// Package objectstore provides a uniform put/get/list/delete/presign
// gateway over a namespaced bucket, backed by an S3-compatible endpoint
// (aws-sdk-go's S3 client against a MinIO-style server).
package objectstore

import (
	"context"
	"io"
	"time"
)

// Gateway is the Object Store Gateway contract.
type Gateway interface {
	// Put uploads data at path with the given content type and optional
	// user metadata. Makes up to 3 attempts on backend errors with a
	// 1-second pause, resetting the stream offset between attempts.
	Put(ctx context.Context, path string, data io.ReadSeeker, contentType string, userMetadata map[string]string) error

	// Get returns the bytes at path, or nil if the object does not exist.
	Get(ctx context.Context, path string) ([]byte, error)

	// List returns all object paths under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at path. The S3-backed gateway reports
	// true whenever the delete request succeeds; it does not tell whether
	// the object existed beforehand.
	Delete(ctx context.Context, path string) (bool, error)

	// Presign returns a temporary URL for GET access to path.
	Presign(ctx context.Context, path string, ttl time.Duration) (string, error)

	// SaveJSON marshals value and puts it at path with content type
	// application/json.
	SaveJSON(ctx context.Context, path string, value interface{}) error

	// GetJSON fetches path and unmarshals it into out. Returns false,
	// nil error if the object does not exist.
	GetJSON(ctx context.Context, path string, out interface{}) (bool, error)
}
