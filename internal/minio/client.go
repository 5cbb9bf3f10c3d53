package minio

import (
	"context"
	"io"
)

// Client defines the interface for blob storage operations
type Client interface {
	// Upload stores an object and returns its public URL. Uploading to an
	// existing object name overwrites it, which keeps retries idempotent.
	Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) (string, error)

	// PublicURL returns the public URL for an object without uploading it.
	PublicURL(objectName string) string

	// Close closes the blob storage client connection
	Close() error
}
