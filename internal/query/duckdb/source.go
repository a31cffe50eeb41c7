package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/docsheet/docsheet/internal/catalog"
	"github.com/docsheet/docsheet/internal/literal"
	"github.com/docsheet/docsheet/internal/query"
	"github.com/docsheet/docsheet/internal/storage"
)

// Source runs statements with DuckDB over a container's JSON-lines file.
// The file is copied from the object store when a query is opened and
// exposed as the view c, narrowed to the requested partition key.
type Source struct {
	store     storage.ObjectStore
	container catalog.Container
	charges   query.ChargeModel
}

func NewSource(store storage.ObjectStore, container catalog.Container, charges query.ChargeModel) (*Source, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Source{store: store, container: container, charges: charges}, nil
}

func (s *Source) Container() catalog.Container {
	return s.container
}

func (s *Source) Open(ctx context.Context, request query.Request) (query.PageIterator, error) {
	statement := query.StripTrailingSemicolons(request.SQL)
	if statement == "" {
		return nil, fmt.Errorf("sql is required")
	}
	dataKey, err := storage.BuildContainerPath(s.container.AccountName, s.container.DatabaseID, s.container.ContainerID)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "docsheet-query-")
	if err != nil {
		return nil, fmt.Errorf("create query temp dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(workDir) }

	localPath := filepath.Join(workDir, "container.jsonl")
	size, err := s.download(ctx, dataKey, localPath)
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	if size == 0 {
		empty := func(context.Context, int64, int64) ([]query.Document, error) {
			return []query.Document{}, nil
		}
		return query.NewOffsetPager(empty, request.MaxItemCount, request.ContinuationToken, s.charges, cleanup)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	closer := func() error {
		closeErr := db.Close()
		return errors.Join(closeErr, cleanup())
	}

	viewSQL, err := s.viewStatement(localPath, request.PartitionKey)
	if err != nil {
		_ = closer()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		_ = closer()
		return nil, fmt.Errorf("create container view: %w", err)
	}

	rewritten, args := query.BindPositional(statement, request.Parameters, 1)
	fetch := func(ctx context.Context, limit, offset int64) ([]query.Document, error) {
		sqlText := fmt.Sprintf("SELECT CAST(to_json(q) AS VARCHAR) FROM (%s) AS q LIMIT %d OFFSET %d", rewritten, limit, offset)
		return fetchDocuments(ctx, db, sqlText, args)
	}
	pager, err := query.NewOffsetPager(fetch, request.MaxItemCount, request.ContinuationToken, s.charges, closer)
	if err != nil {
		_ = closer()
		return nil, err
	}
	return pager, nil
}

func (s *Source) download(ctx context.Context, key, localPath string) (int64, error) {
	reader, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get container documents %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	size, err := writeFile(localPath, reader)
	if err != nil {
		return 0, fmt.Errorf("write local container file: %w", err)
	}
	return size, nil
}

func (s *Source) viewStatement(localPath string, partitionKey literal.Value) (string, error) {
	viewSQL := fmt.Sprintf(
		"CREATE OR REPLACE VIEW c AS SELECT t.* FROM read_json_auto(%s, format = 'newline_delimited') AS t",
		quoteString(localPath),
	)
	if partitionKey.IsAbsent() {
		return viewSQL, nil
	}
	jsonPath, err := jsonPathFor(s.container.PartitionKeyPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s WHERE json_extract(to_json(t), %s) = CAST(%s AS JSON)",
		viewSQL, quoteString(jsonPath), quoteString(partitionKey.String())), nil
}

func fetchDocuments(ctx context.Context, db *sql.DB, sqlText string, args []any) ([]query.Document, error) {
	rows, err := db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// jsonPathFor converts a partition key path such as /tenant/id into the
// DuckDB JSON path $."tenant"."id".
func jsonPathFor(partitionKeyPath string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(partitionKeyPath), "/")
	if trimmed == "" {
		return "", fmt.Errorf("partition key path is required to filter by partition key")
	}
	var b strings.Builder
	b.WriteString("$")
	for _, segment := range strings.Split(trimmed, "/") {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(segment, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String(), nil
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
