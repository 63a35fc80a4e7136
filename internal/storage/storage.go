// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup;
// the MinIO implementation works with any S3-compatible provider.
//
// The service never proxies object bytes. Clients upload and download directly
// against the store using presigned URLs minted here.
package storage

import (
	"context"
	"time"
)

// Storage is the interface for presigning client access and removing objects.
type Storage interface {
	// PresignPut returns a URL that authorizes one HTTP PUT of the object
	// under key. The Content-Type header is part of the signature, so the
	// uploader must send exactly contentType.
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	// PresignGet returns a URL that authorizes reading the object under key.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
}
