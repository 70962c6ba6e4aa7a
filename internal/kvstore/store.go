// Package kvstore persists JSON documents in a per-user namespaced key-value store.
package kvstore

import (
	"context"
	"errors"

	"github.com/stockscan/stockscan/internal/shared"
)

// ErrKeyNotFound is returned by Store.Get when no value exists for the key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// ErrCapacityExceeded is returned when the backing medium refuses a write because it is full.
var ErrCapacityExceeded = shared.ErrCapacityExceeded

// Store is the storage port implemented by every backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
