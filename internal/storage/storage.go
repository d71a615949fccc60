// Package storage provides the durable key-value store the client keeps its
// session and cart in. It plays the role browser local storage plays for a
// web storefront: string keys, opaque values, a single writer.
package storage

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyCart  = "shopping-cart"
)

var (
	ErrKeyNotFound = errors.New("storage: key not found")
	ErrStoreClosed = errors.New("storage: store is closed")
)

// Storage is implemented by every backend. Get returns ErrKeyNotFound for a
// missing key. Delete of a missing key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
