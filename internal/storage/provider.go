// Package storage defines the key-value blob store that holds the habit
// document.
package storage

import "context"

// Provider is a minimal key-value store for opaque blobs.
type Provider interface {
	// Get returns the value stored under key, or apperr.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}
