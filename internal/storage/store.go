// Package storage defines the blob store boundary the upload and retrieval
// engines are written against, plus a MinIO-backed implementation for
// self-hosted deployments. The Walrus HTTP client is the other
// implementation.
package storage

import "context"

// BlobStore is a content store addressed by opaque blob ids.
//
// Put performs a single write attempt and returns the store-assigned id;
// retry policy belongs to the caller, which may need to persist progress
// between attempts. Get owns its full retry/timeout loop and returns the
// complete blob.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, blobID string) ([]byte, error)
}
