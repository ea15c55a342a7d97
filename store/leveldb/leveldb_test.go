package leveldb

import (
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/thebanglabrief/thebanglabrief/store"
	"github.com/thebanglabrief/thebanglabrief/store/storetest"
)

func TestLevelDB(t *testing.T) {
	t.Run("StoreSuite", func(t *testing.T) {
		storetest.TestStoreSuite(t, func() store.Store {
			db, err := leveldb.Open(storage.NewMemStorage(), nil)
			if err != nil {
				t.Fatal(err)
			}
			return &Database{db: db}
		})
	})
}

func TestLevelDBOnDisk(t *testing.T) {
	dir := t.TempDir()

	db, err := New(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := db.Put("videos", "v1", []byte("payload")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Contents survive a reopen.
	db, err = New(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	got, err := db.Get("videos", "v1")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("value mismatch after reopen: have %q", got)
	}
}
