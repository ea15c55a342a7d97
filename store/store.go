// Package store defines the durable key/value layer the cache engine sits on:
// a process-wide, multi-namespace store persisted across restarts.
//
// Implementations live in the leveldb (on-disk, production) and memorydb
// (in-memory, tests and examples) subpackages. Both are exercised by the
// shared conformance suite in storetest.
package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key is absent from the namespace.
	ErrNotFound = errors.New("store: not found")

	// ErrClosed is returned by any operation after Close.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidNamespace is returned for an empty namespace or one containing
	// the reserved separator byte.
	ErrInvalidNamespace = errors.New("store: invalid namespace")
)

// Separator delimits the namespace from the key in flattened storage keys.
// Namespaces must not contain it; keys may.
const Separator = "\x00"

// Store is a synchronous, multi-namespace key/value store.
// All methods are safe for concurrent use by multiple goroutines.
type Store interface {
	// Put inserts or replaces the value for key within namespace.
	Put(namespace, key string, value []byte) error

	// Get returns the value for key within namespace.
	// It returns ErrNotFound when the key is absent.
	Get(namespace, key string) ([]byte, error)

	// Delete removes key from namespace. Deleting an absent key is not an error.
	Delete(namespace, key string) error

	// Keys returns all keys currently stored in namespace, in unspecified order.
	Keys(namespace string) ([]string, error)

	// Len returns the number of keys currently stored in namespace.
	Len(namespace string) (int, error)

	// Close releases the underlying resources. Operations after Close
	// return ErrClosed.
	Close() error
}

// ValidateNamespace reports whether ns is usable as a namespace.
func ValidateNamespace(ns string) error {
	if ns == "" || strings.Contains(ns, Separator) {
		return ErrInvalidNamespace
	}
	return nil
}
