package memory

import (
	"context"
	"testing"
)

func TestStorePutDocumentCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	if err := store.EnsureSite(context.Background(), "site"); err != nil {
		t.Fatalf("EnsureSite() error = %v", err)
	}
	payload := []byte("content")
	uri, err := store.PutDocument(context.Background(), "site", "page.md", payload)
	if err != nil {
		t.Fatalf("PutDocument() error = %v", err)
	}
	if uri != "memory://site/page.md" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, ok := store.Get("site", "page.md")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestStoreRequiresSite(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.PutDocument(context.Background(), "missing", "a.md", nil); err == nil {
		t.Fatal("expected error for unknown site")
	}
	if err := store.EnsureSite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty site")
	}
}

func TestStoreNames(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	for _, site := range []string{"a", "ab"} {
		if err := store.EnsureSite(ctx, site); err != nil {
			t.Fatalf("EnsureSite() error = %v", err)
		}
	}
	for _, name := range []string{"z.md", "index.md"} {
		if _, err := store.PutDocument(ctx, "a", name, []byte(name)); err != nil {
			t.Fatalf("PutDocument() error = %v", err)
		}
	}
	if _, err := store.PutDocument(ctx, "ab", "other.md", nil); err != nil {
		t.Fatalf("PutDocument() error = %v", err)
	}

	names := store.Names("a")
	if len(names) != 2 || names[0] != "index.md" || names[1] != "z.md" {
		t.Fatalf("unexpected names %v", names)
	}
	if !store.HasSite("ab") || store.HasSite("c") {
		t.Fatal("unexpected HasSite result")
	}
}
