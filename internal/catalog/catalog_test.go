package catalog

import (
	"encoding/json"
	"testing"
)

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("local", "shop/orders")
	if err != nil {
		t.Fatalf("ParseRef() error = %v", err)
	}
	if ref.Path() != "local/shop/orders" {
		t.Fatalf("Path() = %q", ref.Path())
	}

	ref, err = ParseRef("local", "/acme/shop/orders/")
	if err != nil {
		t.Fatalf("ParseRef() error = %v", err)
	}
	if ref.AccountName != "acme" {
		t.Fatalf("AccountName = %q", ref.AccountName)
	}

	for _, raw := range []string{"orders", "a/b/c/d", "shop//x", ""} {
		if _, err := ParseRef("local", raw); err == nil {
			t.Fatalf("ParseRef(%q) expected error", raw)
		}
	}
}

func TestPartitionKeyOf(t *testing.T) {
	container := Container{PartitionKeyPath: "/tenant/id"}

	key, err := container.PartitionKeyOf(json.RawMessage(`{"tenant":{"id":"t-1"},"id":"a"}`))
	if err != nil {
		t.Fatalf("PartitionKeyOf() error = %v", err)
	}
	if string(key) != `"t-1"` {
		t.Fatalf("PartitionKeyOf() = %s", key)
	}

	key, err = container.PartitionKeyOf(json.RawMessage(`{"tenant":"flat"}`))
	if err != nil || key != nil {
		t.Fatalf("PartitionKeyOf() = %s, %v; want nil, nil", key, err)
	}

	if _, err := (Container{}).PartitionKeyOf(json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing partition key path")
	}
}

func TestDocumentID(t *testing.T) {
	id, err := DocumentID(json.RawMessage(`{"id":"doc-1"}`))
	if err != nil || id != "doc-1" {
		t.Fatalf("DocumentID() = %q, %v", id, err)
	}
	for _, raw := range []string{`{"id":1}`, `{}`, `[]`, `{"id":""}`} {
		if _, err := DocumentID(json.RawMessage(raw)); err == nil {
			t.Fatalf("DocumentID(%s) expected error", raw)
		}
	}
}
