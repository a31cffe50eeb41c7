package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docsheet/docsheet/internal/catalog"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog db: %w", err)
	}
	return nil
}

func (r *Repository) CreateContainer(ctx context.Context, in catalog.CreateContainerInput) (catalog.Container, error) {
	keyPath := strings.TrimSpace(in.PartitionKeyPath)
	if keyPath == "" {
		keyPath = "/id"
	}
	if !strings.HasPrefix(keyPath, "/") {
		return catalog.Container{}, fmt.Errorf("partition key path must start with /: %q", keyPath)
	}

	query := `
INSERT INTO container (account_name, database_id, container_id, partition_key_path)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query, in.AccountName, in.DatabaseID, in.ContainerID, keyPath).Scan(&createdAt); err != nil {
		return catalog.Container{}, fmt.Errorf("create container: %w", err)
	}
	return catalog.Container{
		ContainerRef:     in.ContainerRef,
		PartitionKeyPath: keyPath,
		CreatedAt:        createdAt,
	}, nil
}

func (r *Repository) GetContainer(ctx context.Context, ref catalog.ContainerRef) (catalog.Container, error) {
	query := `
SELECT account_name, database_id, container_id, partition_key_path, created_at
FROM container
WHERE account_name = $1 AND database_id = $2 AND container_id = $3`

	var container catalog.Container
	if err := r.db.QueryRowContext(ctx, query, ref.AccountName, ref.DatabaseID, ref.ContainerID).Scan(
		&container.AccountName,
		&container.DatabaseID,
		&container.ContainerID,
		&container.PartitionKeyPath,
		&container.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Container{}, catalog.ErrNotFound
		}
		return catalog.Container{}, fmt.Errorf("get container: %w", err)
	}
	return container, nil
}

// ListContainers lists the containers of an account, optionally narrowed to
// one database.
func (r *Repository) ListContainers(ctx context.Context, accountName, databaseID string) ([]catalog.Container, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT account_name, database_id, container_id, partition_key_path, created_at
FROM container
WHERE account_name = $1 AND ($2 = '' OR database_id = $2)
ORDER BY database_id ASC, container_id ASC`, accountName, databaseID)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	out := []catalog.Container{}
	for rows.Next() {
		var container catalog.Container
		if err := rows.Scan(
			&container.AccountName,
			&container.DatabaseID,
			&container.ContainerID,
			&container.PartitionKeyPath,
			&container.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		out = append(out, container)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate containers: %w", err)
	}
	return out, nil
}

func (r *Repository) DeleteContainer(ctx context.Context, ref catalog.ContainerRef) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM container
WHERE account_name = $1 AND database_id = $2 AND container_id = $3`, ref.AccountName, ref.DatabaseID, ref.ContainerID)
	if err != nil {
		return false, fmt.Errorf("delete container: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete container rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpsertDocuments writes docs into container in one transaction, replacing
// documents with the same id.
func (r *Repository) UpsertDocuments(ctx context.Context, container catalog.Container, docs []json.RawMessage) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	type row struct {
		id           string
		partitionKey *string
		body         string
	}
	rows := make([]row, 0, len(docs))
	for i, doc := range docs {
		id, err := catalog.DocumentID(doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		key, err := container.PartitionKeyOf(doc)
		if err != nil {
			return 0, fmt.Errorf("document %q: %w", id, err)
		}
		item := row{id: id, body: string(doc)}
		if key != nil {
			value := string(key)
			item.partitionKey = &value
		}
		rows = append(rows, item)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document (account_name, database_id, container_id, id, partition_key, body)
VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb)
ON CONFLICT (account_name, database_id, container_id, id)
DO UPDATE SET partition_key = EXCLUDED.partition_key, body = EXCLUDED.body, updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prepare document upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range rows {
		if _, err := stmt.ExecContext(ctx, container.AccountName, container.DatabaseID, container.ContainerID, item.id, item.partitionKey, item.body); err != nil {
			return 0, fmt.Errorf("upsert document %q: %w", item.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return len(rows), nil
}

var _ catalog.Repository = (*Repository)(nil)
