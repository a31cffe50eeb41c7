package console

import (
	"context"
	"fmt"

	"github.com/docsheet/docsheet/internal/catalog"
	"github.com/docsheet/docsheet/internal/catalog/objectstore"
	catalogpostgres "github.com/docsheet/docsheet/internal/catalog/postgres"
	"github.com/docsheet/docsheet/internal/config"
	"github.com/docsheet/docsheet/internal/query"
	duckdbsource "github.com/docsheet/docsheet/internal/query/duckdb"
	pgsource "github.com/docsheet/docsheet/internal/query/postgres"
	"github.com/docsheet/docsheet/internal/storage"
	"github.com/docsheet/docsheet/internal/storage/local"
	s3store "github.com/docsheet/docsheet/internal/storage/s3"
)

// Dependencies are the backends a console talks to.
type Dependencies struct {
	Catalog catalog.Repository
	Objects storage.ObjectStore
	Sources SourceFactory
	Close   func() error
}

// OpenDependencies builds the object store, catalog and query sources
// selected by cfg.
func OpenDependencies(ctx context.Context, cfg config.Config) (Dependencies, error) {
	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		return Dependencies{}, err
	}
	charges := query.ChargeModel{PerPage: cfg.Source.PageCharge, PerItem: cfg.Source.ItemCharge}

	switch cfg.Source.Kind {
	case config.SourceDuckDB:
		return Dependencies{
			Catalog: objectstore.NewRepository(objects),
			Objects: objects,
			Sources: func(_ context.Context, container catalog.Container) (query.Source, error) {
				return duckdbsource.NewSource(objects, container, charges)
			},
			Close: func() error { return nil },
		}, nil
	case config.SourcePostgres:
		db, err := catalogpostgres.Open(ctx, cfg.Catalog)
		if err != nil {
			return Dependencies{}, err
		}
		return Dependencies{
			Catalog: catalogpostgres.NewRepository(db),
			Objects: objects,
			Sources: func(_ context.Context, container catalog.Container) (query.Source, error) {
				return pgsource.NewSource(db, container, charges)
			},
			Close: db.Close,
		}, nil
	default:
		return Dependencies{}, fmt.Errorf("unsupported source kind %q", cfg.Source.Kind)
	}
}

func openObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	switch cfg.Sheets.Backend {
	case config.SheetsS3:
		store, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		return store, nil
	default:
		store, err := local.New(cfg.Sheets.Dir)
		if err != nil {
			return nil, fmt.Errorf("initialize local store: %w", err)
		}
		return store, nil
	}
}
