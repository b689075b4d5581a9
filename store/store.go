package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value. Implementations
// must return it (possibly wrapped) rather than an empty string so callers can
// distinguish absence from an empty blob.
var ErrNotFound = errors.New("store: key not found")

// Store is the durable secure key-value contract consumed by the session
// manager. All operations are idempotent and atomic per key; implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
