// Package leveldb implements store.Store on top of goleveldb, an embedded
// on-disk key/value database. One database directory serves every namespace;
// flattened keys are "<namespace>\x00<key>" so a namespace maps to an
// iterator prefix range.
package leveldb

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/thebanglabrief/thebanglabrief/store"
)

// Database wraps a goleveldb instance behind the store.Store contract.
type Database struct {
	db *leveldb.DB

	closeOnce sync.Once
	closeErr  error
}

// New opens (creating if necessary) the database directory at path.
// The returned Database holds the directory's file lock until Close.
func New(path string) (*Database, error) {
	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
		// The store holds re-fetchable cache content, not a system of record:
		// salvage what recovers rather than refusing to open.
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// NewMemory opens a database backed by in-process storage.
// Intended for tests and examples; contents are lost on Close.
func NewMemory() (*Database, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func flatKey(namespace, key string) []byte {
	b := make([]byte, 0, len(namespace)+1+len(key))
	b = append(b, namespace...)
	b = append(b, store.Separator...)
	b = append(b, key...)
	return b
}

func nsPrefix(namespace string) []byte {
	return []byte(namespace + store.Separator)
}

// Put implements store.Store.
func (d *Database) Put(namespace, key string, value []byte) error {
	if err := store.ValidateNamespace(namespace); err != nil {
		return err
	}
	return translate(d.db.Put(flatKey(namespace, key), value, nil))
}

// Get implements store.Store.
func (d *Database) Get(namespace, key string) ([]byte, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	v, err := d.db.Get(flatKey(namespace, key), nil)
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

// Delete implements store.Store. Deleting an absent key is not an error.
func (d *Database) Delete(namespace, key string) error {
	if err := store.ValidateNamespace(namespace); err != nil {
		return err
	}
	return translate(d.db.Delete(flatKey(namespace, key), nil))
}

// Keys implements store.Store.
func (d *Database) Keys(namespace string) ([]string, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	prefix := nsPrefix(namespace)
	it := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()[len(prefix):]))
	}
	if err := it.Error(); err != nil {
		return nil, translate(err)
	}
	return keys, nil
}

// Len implements store.Store.
func (d *Database) Len(namespace string) (int, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return 0, err
	}
	it := d.db.NewIterator(util.BytesPrefix(nsPrefix(namespace)), nil)
	defer it.Release()

	n := 0
	for it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Close implements store.Store. Safe to call more than once.
func (d *Database) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.db.Close()
	})
	return d.closeErr
}

// translate maps goleveldb sentinel errors onto the store package's.
func translate(err error) error {
	switch err {
	case nil:
		return nil
	case leveldb.ErrNotFound:
		return store.ErrNotFound
	case leveldb.ErrClosed:
		return store.ErrClosed
	default:
		return err
	}
}

var _ store.Store = (*Database)(nil)
