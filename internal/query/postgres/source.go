package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/docsheet/docsheet/internal/catalog"
	"github.com/docsheet/docsheet/internal/query"
)

// firstUserParam is the first placeholder left for statement parameters;
// $1-$4 scope the container.
const firstUserParam = 5

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Source answers statements against one container of the document table.
// Statements read from the relation c (id, partition_key, body) and every
// result row is returned as a JSON object keyed by column name.
type Source struct {
	db        queryer
	container catalog.Container
	charges   query.ChargeModel
}

func NewSource(db queryer, container catalog.Container, charges query.ChargeModel) (*Source, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &Source{db: db, container: container, charges: charges}, nil
}

func (s *Source) Container() catalog.Container {
	return s.container
}

func (s *Source) Open(_ context.Context, request query.Request) (query.PageIterator, error) {
	statement := query.StripTrailingSemicolons(request.SQL)
	if statement == "" {
		return nil, fmt.Errorf("sql is required")
	}
	rewritten, params := query.BindPositional(statement, request.Parameters, firstUserParam)

	args := append([]any{
		s.container.AccountName,
		s.container.DatabaseID,
		s.container.ContainerID,
		query.JSONArg(request.PartitionKey),
	}, params...)
	base := buildStatement(rewritten)

	fetch := func(ctx context.Context, limit, offset int64) ([]query.Document, error) {
		return s.fetch(ctx, fmt.Sprintf("%s\nLIMIT %d OFFSET %d", base, limit, offset), args)
	}
	return query.NewOffsetPager(fetch, request.MaxItemCount, request.ContinuationToken, s.charges, nil)
}

func buildStatement(statement string) string {
	var b strings.Builder
	b.WriteString(`WITH c AS (
    SELECT id, partition_key, body
    FROM document
    WHERE account_name = $1 AND database_id = $2 AND container_id = $3
      AND ($4::jsonb IS NULL OR partition_key = $4::jsonb)
)
SELECT to_jsonb(q)::text FROM (`)
	b.WriteString(statement)
	b.WriteString(`) AS q`)
	return b.String()
}

func (s *Source) fetch(ctx context.Context, sqlText string, args []any) ([]query.Document, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	items := []query.Document{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, query.Document(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return items, nil
}
