package store

import (
	"context"
	"errors"
)

// Store errors
var (
	ErrBlobNotFound     = errors.New("blob not found")
	ErrConcurrentUpdate = errors.New("too many concurrent updates for key")
)

// UpdateFunc transforms the current contents of a blob. current is nil when
// the blob does not exist yet. Returning nil data leaves the blob untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// BlobStore holds one JSON-encoded score array per leaderboard key. Update
// runs a read-modify-write cycle atomically with respect to other updates
// of the same key, so concurrent submissions cannot clobber each other.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
