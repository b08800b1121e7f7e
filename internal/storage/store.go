// Package storage provides the key-value persistence used for the ledger
// snapshot.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")

// KeyValueStore holds string values under string keys. Set replaces the whole
// value; there is no partial update.
type KeyValueStore interface {
	// Get returns the value stored under key. ok is false when the key has
	// never been written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
