// Package store defines the raw slot medium and its backends.
//
// A slot is a string key holding a string value, the same contract a
// browser's localStorage offers. Nothing in this package knows about
// collections, schemas or backups; that lives one layer up in shadow.
package store

import "errors"

var (
	// ErrQuotaExceeded is returned by Set when the backend refuses a write
	// because it would exceed its configured capacity.
	ErrQuotaExceeded = errors.New("store: quota exceeded")

	// ErrClosed is returned by any operation on a closed backend.
	ErrClosed = errors.New("store: closed")
)

// Store is the interface that all slot backends must implement.
type Store interface {
	// Get returns the value held in a slot. ok is false if the slot is empty.
	Get(key string) (value string, ok bool, err error)

	// Set writes a slot, replacing any existing value.
	Set(key, value string) error

	// Delete empties a slot. Deleting an empty slot is not an error.
	Delete(key string) error

	// Keys returns the names of all non-empty slots in sorted order.
	Keys() ([]string, error)

	// Close releases the backend's resources.
	Close() error
}
