package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "index.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close store: %v", err)
		}
	})
	return store
}

func TestStorePutAndLookup(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	urls := []string{"http://b.com", "http://a.com", "http://b.com"}
	if err := store.Put(ctx, "cat", urls); err != nil {
		t.Fatalf("Failed to put word: %v", err)
	}

	got, err := store.Lookup(ctx, "cat")
	if err != nil {
		t.Fatalf("Failed to lookup word: %v", err)
	}
	if !reflect.DeepEqual(got, urls) {
		t.Errorf("expected %v, got %v", urls, got)
	}
}

func TestStoreLookupExactKey(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	if err := store.Put(ctx, "cat", []string{"http://a.com"}); err != nil {
		t.Fatalf("Failed to put word: %v", err)
	}

	for _, word := range []string{"Cat", "cats", "ca", "%", ""} {
		if _, err := store.Lookup(ctx, word); !errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%q): expected ErrNotFound, got %v", word, err)
		}
	}
}

func TestStoreLookupMalformed(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	if _, err := store.DB().Exec("INSERT INTO word_index (word, urls) VALUES ('bad', 'not json'), ('obj', '{\"a\":1}')"); err != nil {
		t.Fatalf("Failed to insert malformed rows: %v", err)
	}

	for _, word := range []string{"bad", "obj"} {
		_, err := store.Lookup(ctx, word)
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%q): expected decode error, got %v", word, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Malformed != 2 {
		t.Errorf("expected 2 malformed rows, got %d", stats.Malformed)
	}
}

func TestStoreLookupDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	if err := store.Put(ctx, "dog", []string{"http://b.com"}); err != nil {
		t.Fatalf("Failed to put word: %v", err)
	}
	before, _ := store.Stats(ctx)

	for i := 0; i < 5; i++ {
		store.Lookup(ctx, "dog")
		store.Lookup(ctx, "missing")
	}

	after, _ := store.Stats(ctx)
	if *before != *after {
		t.Errorf("stats changed after lookups: %+v -> %+v", before, after)
	}
}

func TestStoreImport(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	input := `{"cat": ["http://a.com", "http://b.com"], "dog": ["http://b.com"], "empty": null}`
	n, err := store.Import(ctx, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 imported words, got %d", n)
	}

	got, err := store.Lookup(ctx, "cat")
	if err != nil {
		t.Fatalf("Failed to lookup cat: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"http://a.com", "http://b.com"}) {
		t.Errorf("unexpected urls for cat: %v", got)
	}

	empty, err := store.Lookup(ctx, "empty")
	if err != nil {
		t.Fatalf("Failed to lookup empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no urls for empty, got %v", empty)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Words != 3 || stats.URLRefs != 3 || stats.Malformed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastImport == nil {
		t.Error("expected last import time to be recorded")
	}
}

func TestStoreImportInvalidJSON(t *testing.T) {
	store := createTestStore(t)
	if _, err := store.Import(context.Background(), strings.NewReader(`["not", "an", "object"]`)); err == nil {
		t.Fatal("expected error importing a JSON array")
	}
}

func TestStoreConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	if err := store.Put(ctx, "go", []string{"https://go.dev"}); err != nil {
		t.Fatalf("Failed to put word: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Lookup(ctx, "go")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("lookup %d failed: %v", i, err)
		}
	}
}

func TestStoreClosedLookupFails(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	store.Close()

	if _, err := store.Lookup(context.Background(), "go"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected connection error on closed store, got %v", err)
	}
}

func TestStoreMaintenance(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "go", []string{"https://go.dev/"}); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	problems, err := store.IntegrityCheck(ctx)
	if err != nil {
		t.Fatalf("Failed to run integrity check: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("Expected healthy database, got %v", problems)
	}

	for name, op := range map[string]func(context.Context) error{
		"optimize":   store.Optimize,
		"analyze":    store.Analyze,
		"vacuum":     store.Vacuum,
		"checkpoint": store.WALCheckpoint,
	} {
		if err := op(ctx); err != nil {
			t.Errorf("Failed to %s: %v", name, err)
		}
	}

	urls, err := store.Lookup(ctx, "go")
	if err != nil || len(urls) != 1 {
		t.Errorf("Expected data to survive maintenance, got %v, %v", urls, err)
	}
}
