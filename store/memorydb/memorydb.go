// Package memorydb implements store.Store as namespaced in-process maps.
// It backs tests and examples; nothing survives Close.
package memorydb

import (
	"sync"

	"github.com/thebanglabrief/thebanglabrief/store"
)

// Database is a mutex-guarded, namespace-partitioned map store.
// Values are copied on both Put and Get so callers cannot alias
// the stored bytes.
type Database struct {
	mu sync.RWMutex
	ns map[string]map[string][]byte // nil once closed
}

// New constructs an empty in-memory store.
func New() *Database {
	return &Database{ns: make(map[string]map[string][]byte)}
}

// Put implements store.Store.
func (d *Database) Put(namespace, key string, value []byte) error {
	if err := store.ValidateNamespace(namespace); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ns == nil {
		return store.ErrClosed
	}
	m, ok := d.ns[namespace]
	if !ok {
		m = make(map[string][]byte)
		d.ns[namespace] = m
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m[key] = cp
	return nil
}

// Get implements store.Store.
func (d *Database) Get(namespace, key string) ([]byte, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ns == nil {
		return nil, store.ErrClosed
	}
	v, ok := d.ns[namespace][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Delete implements store.Store.
func (d *Database) Delete(namespace, key string) error {
	if err := store.ValidateNamespace(namespace); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ns == nil {
		return store.ErrClosed
	}
	delete(d.ns[namespace], key)
	return nil
}

// Keys implements store.Store.
func (d *Database) Keys(namespace string) ([]string, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ns == nil {
		return nil, store.ErrClosed
	}
	m := d.ns[namespace]
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len implements store.Store.
func (d *Database) Len(namespace string) (int, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return 0, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ns == nil {
		return 0, store.ErrClosed
	}
	return len(d.ns[namespace]), nil
}

// Close implements store.Store. Safe to call more than once.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ns = nil
	return nil
}

var _ store.Store = (*Database)(nil)
