// Package storetest provides a conformance suite every store.Store
// implementation is expected to pass. Implementation packages run it from
// their own tests against a fresh instance.
package storetest

import (
	"bytes"
	"sort"
	"testing"

	"github.com/thebanglabrief/thebanglabrief/store"
)

// TestStoreSuite runs the full conformance suite. newStore must return a
// fresh, empty store for each invocation; the suite closes what it opens.
func TestStoreSuite(t *testing.T, newStore func() store.Store) {
	t.Run("PutGetRoundTrip", func(t *testing.T) { testPutGetRoundTrip(t, newStore()) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newStore()) })
	t.Run("ValueAliasing", func(t *testing.T) { testValueAliasing(t, newStore()) })
	t.Run("NamespaceIsolation", func(t *testing.T) { testNamespaceIsolation(t, newStore()) })
	t.Run("MissingKey", func(t *testing.T) { testMissingKey(t, newStore()) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newStore()) })
	t.Run("KeysAndLen", func(t *testing.T) { testKeysAndLen(t, newStore()) })
	t.Run("KeyMayContainSeparator", func(t *testing.T) { testKeySeparator(t, newStore()) })
	t.Run("InvalidNamespace", func(t *testing.T) { testInvalidNamespace(t, newStore()) })
	t.Run("Close", func(t *testing.T) { testClose(t, newStore()) })
}

func testPutGetRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()

	if err := s.Put("videos", "v1", []byte("payload")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := s.Get("videos", "v1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("value mismatch: have %q want %q", got, "payload")
	}
	// Empty values round-trip as empty, not as a miss.
	if err := s.Put("videos", "empty", nil); err != nil {
		t.Fatalf("put empty failed: %v", err)
	}
	if got, err = s.Get("videos", "empty"); err != nil {
		t.Fatalf("get empty failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty value, have %q", got)
	}
}

func testOverwrite(t *testing.T, s store.Store) {
	defer s.Close()

	for _, v := range []string{"one", "two", "three"} {
		if err := s.Put("ns", "k", []byte(v)); err != nil {
			t.Fatalf("put %q failed: %v", v, err)
		}
	}
	got, err := s.Get("ns", "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "three" {
		t.Fatalf("overwrite lost: have %q want %q", got, "three")
	}
	if n, _ := s.Len("ns"); n != 1 {
		t.Fatalf("overwrite changed key count: have %d want 1", n)
	}
}

func testValueAliasing(t *testing.T, s store.Store) {
	defer s.Close()

	v := []byte("original")
	if err := s.Put("ns", "k", v); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	copy(v, "XXXXXXXX")

	got, err := s.Get("ns", "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("store aliases caller buffer: have %q", got)
	}
	// Mutating the returned slice must not poison later reads.
	copy(got, "YYYYYYYY")
	again, err := s.Get("ns", "k")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if string(again) != "original" {
		t.Fatalf("returned slice aliases storage: have %q", again)
	}
}

func testNamespaceIsolation(t *testing.T, s store.Store) {
	defer s.Close()

	if err := s.Put("videos", "id", []byte("video")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Put("channels", "id", []byte("channel")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := s.Get("videos", "id")
	if err != nil || string(got) != "video" {
		t.Fatalf("videos/id: have %q err %v", got, err)
	}
	got, err = s.Get("channels", "id")
	if err != nil || string(got) != "channel" {
		t.Fatalf("channels/id: have %q err %v", got, err)
	}

	if err := s.Delete("videos", "id"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get("channels", "id"); err != nil {
		t.Fatalf("delete leaked across namespaces: %v", err)
	}
}

func testMissingKey(t *testing.T, s store.Store) {
	defer s.Close()

	if _, err := s.Get("ns", "absent"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, have %v", err)
	}
}

func testDeleteIdempotent(t *testing.T, s store.Store) {
	defer s.Close()

	if err := s.Put("ns", "k", []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Delete("ns", "k"); err != nil {
			t.Fatalf("delete #%d failed: %v", i+1, err)
		}
	}
	if err := s.Delete("ns", "never-existed"); err != nil {
		t.Fatalf("delete of absent key failed: %v", err)
	}
}

func testKeysAndLen(t *testing.T, s store.Store) {
	defer s.Close()

	want := []string{"a", "b", "c"}
	for _, k := range want {
		if err := s.Put("ns", k, []byte(k)); err != nil {
			t.Fatalf("put %q failed: %v", k, err)
		}
	}
	keys, err := s.Keys("ns")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != len(want) {
		t.Fatalf("key count: have %d want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys mismatch: have %v want %v", keys, want)
		}
	}
	n, err := s.Len("ns")
	if err != nil {
		t.Fatalf("len failed: %v", err)
	}
	if n != len(want) {
		t.Fatalf("len: have %d want %d", n, len(want))
	}
	// Empty namespaces report zero, not an error.
	if n, err = s.Len("empty"); err != nil || n != 0 {
		t.Fatalf("empty namespace: have %d err %v", n, err)
	}
}

func testKeySeparator(t *testing.T, s store.Store) {
	defer s.Close()

	key := "page\x00two"
	if err := s.Put("ns", key, []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := s.Get("ns", key)
	if err != nil || string(got) != "v" {
		t.Fatalf("separator key round-trip: have %q err %v", got, err)
	}
	keys, err := s.Keys("ns")
	if err != nil || len(keys) != 1 || keys[0] != key {
		t.Fatalf("separator key listing: have %v err %v", keys, err)
	}
}

func testInvalidNamespace(t *testing.T, s store.Store) {
	defer s.Close()

	for _, ns := range []string{"", "bad\x00ns"} {
		if err := s.Put(ns, "k", []byte("v")); err != store.ErrInvalidNamespace {
			t.Fatalf("put %q: expected ErrInvalidNamespace, have %v", ns, err)
		}
		if _, err := s.Get(ns, "k"); err != store.ErrInvalidNamespace {
			t.Fatalf("get %q: expected ErrInvalidNamespace, have %v", ns, err)
		}
	}
}

func testClose(t *testing.T, s store.Store) {
	if err := s.Put("ns", "k", []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := s.Get("ns", "k"); err != store.ErrClosed {
		t.Fatalf("expected ErrClosed after close, have %v", err)
	}
	if err := s.Put("ns", "k2", []byte("v")); err != store.ErrClosed {
		t.Fatalf("expected ErrClosed after close, have %v", err)
	}
	// Double close is harmless.
	if err := s.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}
