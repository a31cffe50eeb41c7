package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/docsheet/docsheet/internal/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	payload := []byte(`{"text":"select * from c"}`)

	info, err := store.Put(ctx, "/sheets/orders.json", bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "sheets/orders.json" || info.Size != int64(len(payload)) || info.ETag == "" {
		t.Fatalf("Put() = %#v", info)
	}

	reader, err := store.Get(ctx, "sheets/orders.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Get() = %q, want %q", got, payload)
	}

	if err := store.Delete(ctx, "sheets/orders.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Stat(ctx, "sheets/orders.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() after delete error = %v, want ErrObjectNotFound", err)
	}
	if err := store.Delete(ctx, "sheets/orders.json"); err != nil {
		t.Fatalf("Delete() of missing object error = %v", err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "sheets/none.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStoreListFiltersByPrefix(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"sheets/b.json", "sheets/a.json", "containers/local/db/items.jsonl"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), 1, storage.PutOptions{}); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}
	objects, err := store.List(ctx, "sheets/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 2 || objects[0].Key != "sheets/a.json" || objects[1].Key != "sheets/b.json" {
		t.Fatalf("List() = %#v", objects)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape.json", bytes.NewReader(nil), 0, storage.PutOptions{}); err == nil {
		t.Fatal("expected path traversal validation error")
	}
}
