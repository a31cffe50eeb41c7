package postgres

import (
	"context"
	"testing"

	"github.com/docsheet/docsheet/internal/config"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), config.CatalogConfig{})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
