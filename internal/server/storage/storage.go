// Package storage defines the object-storage collaborator contract and its
// S3 implementation. The server only ever issues time-boxed signed URLs,
// fetches stored bytes for hash verification, and removes objects.
package storage

import (
	"context"
	"time"
)

// ObjectStore is the contract the upload and lifecycle flows depend on.
type ObjectStore interface {
	// PresignPut returns a time-boxed URL the client may PUT the binary to.
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)

	// PresignGet returns a time-boxed download URL.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)

	// Download fetches the full stored byte content of an object.
	Download(ctx context.Context, key string) ([]byte, error)

	// Remove deletes the given objects. Missing keys are not an error.
	Remove(ctx context.Context, keys []string) error
}
