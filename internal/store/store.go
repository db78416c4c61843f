// Package store provides the durable image store behind the gallery: a
// key-value mapping from image identifier to encoded image data that
// survives restarts. Backends are bbolt (default), sqlite and redis.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Version is the store structure version. Backends record it in a marker and
// create their structures only when the marker is missing or older.
const Version = 1

// ErrStorageUnavailable is returned, wrapped, for every open, read or write
// failure. Callers treat it as non-fatal: the gallery keeps working in
// memory and the affected image does not survive a reload.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Record is one persisted image.
type Record struct {
	ID   string
	Data string
}

// Store is the contract shared by all backends.
//
// Put is an upsert, Delete of an unknown id is a no-op, and ListAll returns
// every record in an order that is stable within one call.
type Store interface {
	Put(ctx context.Context, id, data string) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]Record, error)
	Close() error
}

// unavailable wraps err so that errors.Is(err, ErrStorageUnavailable) holds.
func unavailable(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
