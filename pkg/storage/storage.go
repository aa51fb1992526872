// Package storage holds the content-addressed blob stores that keep sealed
// documents. A blob id is the hex SHA-256 of the stored bytes, so putting the
// same ciphertext twice yields the same id and overwrites nothing.
package storage

import (
	"context"
)

// Store is the blob storage collaborator. Get returns an error wrapping
// vault.ErrStorageNotFound when no blob has the id.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}
