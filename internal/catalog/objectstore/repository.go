package objectstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docsheet/docsheet/internal/catalog"
	"github.com/docsheet/docsheet/internal/storage"
)

const manifestSuffix = ".container.json"

type manifest struct {
	PartitionKeyPath string    `json:"partitionKeyPath"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Repository keeps containers as JSON-lines files in an object store, each
// with a small manifest next to it. It backs the DuckDB source.
type Repository struct {
	store storage.ObjectStore
	now   func() time.Time
}

func NewRepository(store storage.ObjectStore) *Repository {
	return &Repository{store: store, now: time.Now}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if _, err := r.store.List(ctx, "containers/"); err != nil {
		return fmt.Errorf("list containers: %w", err)
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
	manifestKey, err := storage.BuildContainerManifestPath(in.AccountName, in.DatabaseID, in.ContainerID)
	if err != nil {
		return catalog.Container{}, err
	}
	if _, err := r.store.Stat(ctx, manifestKey); err == nil {
		return catalog.Container{}, fmt.Errorf("create container: %s already exists", in.Path())
	} else if !errors.Is(err, storage.ErrObjectNotFound) {
		return catalog.Container{}, fmt.Errorf("create container: %w", err)
	}

	meta := manifest{PartitionKeyPath: keyPath, CreatedAt: r.now().UTC()}
	payload, err := json.Marshal(meta)
	if err != nil {
		return catalog.Container{}, fmt.Errorf("encode container manifest: %w", err)
	}
	if _, err := r.store.Put(ctx, manifestKey, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "application/json"}); err != nil {
		return catalog.Container{}, fmt.Errorf("create container: %w", err)
	}
	return catalog.Container{ContainerRef: in.ContainerRef, PartitionKeyPath: keyPath, CreatedAt: meta.CreatedAt}, nil
}

func (r *Repository) GetContainer(ctx context.Context, ref catalog.ContainerRef) (catalog.Container, error) {
	manifestKey, err := storage.BuildContainerManifestPath(ref.AccountName, ref.DatabaseID, ref.ContainerID)
	if err != nil {
		return catalog.Container{}, err
	}
	meta, err := r.readManifest(ctx, manifestKey)
	if err != nil {
		return catalog.Container{}, err
	}
	return catalog.Container{ContainerRef: ref, PartitionKeyPath: meta.PartitionKeyPath, CreatedAt: meta.CreatedAt}, nil
}

func (r *Repository) ListContainers(ctx context.Context, accountName, databaseID string) ([]catalog.Container, error) {
	prefix, err := storage.ContainerPrefix(accountName)
	if err != nil {
		return nil, err
	}
	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := []catalog.Container{}
	for _, object := range objects {
		if !strings.HasSuffix(object.Key, manifestSuffix) {
			continue
		}
		rest := strings.TrimPrefix(object.Key, prefix)
		database, file := path.Split(rest)
		database = strings.TrimSuffix(database, "/")
		if database == "" || strings.Contains(database, "/") {
			continue
		}
		if databaseID != "" && database != databaseID {
			continue
		}
		meta, err := r.readManifest(ctx, object.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, catalog.Container{
			ContainerRef: catalog.ContainerRef{
				AccountName: accountName,
				DatabaseID:  database,
				ContainerID: strings.TrimSuffix(file, manifestSuffix),
			},
			PartitionKeyPath: meta.PartitionKeyPath,
			CreatedAt:        meta.CreatedAt,
		})
	}
	return out, nil
}

func (r *Repository) DeleteContainer(ctx context.Context, ref catalog.ContainerRef) (bool, error) {
	if _, err := r.GetContainer(ctx, ref); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	manifestKey, err := storage.BuildContainerManifestPath(ref.AccountName, ref.DatabaseID, ref.ContainerID)
	if err != nil {
		return false, err
	}
	dataKey, err := storage.BuildContainerPath(ref.AccountName, ref.DatabaseID, ref.ContainerID)
	if err != nil {
		return false, err
	}
	if err := r.store.Delete(ctx, dataKey); err != nil {
		return false, fmt.Errorf("delete container: %w", err)
	}
	if err := r.store.Delete(ctx, manifestKey); err != nil {
		return false, fmt.Errorf("delete container: %w", err)
	}
	return true, nil
}

// UpsertDocuments rewrites the container file with docs merged in by id.
// Existing documents keep their position; new ones are appended.
func (r *Repository) UpsertDocuments(ctx context.Context, container catalog.Container, docs []json.RawMessage) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	dataKey, err := storage.BuildContainerPath(container.AccountName, container.DatabaseID, container.ContainerID)
	if err != nil {
		return 0, err
	}

	existing, err := r.readDocuments(ctx, dataKey)
	if err != nil {
		return 0, err
	}
	positions := make(map[string]int, len(existing))
	for i, doc := range existing {
		id, err := catalog.DocumentID(doc)
		if err != nil {
			return 0, fmt.Errorf("stored document %d: %w", i, err)
		}
		positions[id] = i
	}
	for i, doc := range docs {
		id, err := catalog.DocumentID(doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, doc); err != nil {
			return 0, fmt.Errorf("document %q: %w", id, err)
		}
		if at, ok := positions[id]; ok {
			existing[at] = compact.Bytes()
			continue
		}
		positions[id] = len(existing)
		existing = append(existing, compact.Bytes())
	}

	var payload bytes.Buffer
	for _, doc := range existing {
		payload.Write(doc)
		payload.WriteByte('\n')
	}
	if _, err := r.store.Put(ctx, dataKey, bytes.NewReader(payload.Bytes()), int64(payload.Len()), storage.PutOptions{ContentType: "application/x-ndjson"}); err != nil {
		return 0, fmt.Errorf("write container documents: %w", err)
	}
	return len(docs), nil
}

func (r *Repository) readManifest(ctx context.Context, key string) (manifest, error) {
	reader, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return manifest{}, catalog.ErrNotFound
		}
		return manifest{}, fmt.Errorf("read container manifest: %w", err)
	}
	defer reader.Close()

	var meta manifest
	if err := json.NewDecoder(reader).Decode(&meta); err != nil {
		return manifest{}, fmt.Errorf("decode container manifest %q: %w", key, err)
	}
	return meta, nil
}

func (r *Repository) readDocuments(ctx context.Context, key string) ([]json.RawMessage, error) {
	reader, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read container documents: %w", err)
	}
	defer reader.Close()
	return ReadJSONLines(reader)
}

// ReadJSONLines reads one JSON document per non-blank line.
func ReadJSONLines(reader io.Reader) ([]json.RawMessage, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []json.RawMessage
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		out = append(out, json.RawMessage(append([]byte(nil), text...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read json lines: %w", err)
	}
	return out, nil
}

var _ catalog.Repository = (*Repository)(nil)
