// Package kvstore provides the small string key-value stores that back a
// client's local session history.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned by Set when the write would push the store
	// past its byte quota.
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
)

// Store is a per-client key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
