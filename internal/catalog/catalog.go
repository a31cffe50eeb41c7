package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

// Repository is the directory of accounts, databases and containers.
type Repository interface {
	HealthCheck(ctx context.Context) error
	CreateContainer(ctx context.Context, in CreateContainerInput) (Container, error)
	GetContainer(ctx context.Context, ref ContainerRef) (Container, error)
	ListContainers(ctx context.Context, accountName, databaseID string) ([]Container, error)
	DeleteContainer(ctx context.Context, ref ContainerRef) (bool, error)
	UpsertDocuments(ctx context.Context, container Container, docs []json.RawMessage) (int, error)
}

// ContainerRef names a container within an account.
type ContainerRef struct {
	AccountName string
	DatabaseID  string
	ContainerID string
}

func (r ContainerRef) Path() string {
	return r.AccountName + "/" + r.DatabaseID + "/" + r.ContainerID
}

// ParseRef reads "account/database/container". A two part value is
// resolved against account.
func ParseRef(account, raw string) (ContainerRef, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(raw), "/"), "/")
	switch len(parts) {
	case 2:
		parts = append([]string{account}, parts...)
	case 3:
	default:
		return ContainerRef{}, fmt.Errorf("invalid container path %q: want [account/]database/container", raw)
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return ContainerRef{}, fmt.Errorf("invalid container path %q: empty component", raw)
		}
	}
	return ContainerRef{AccountName: parts[0], DatabaseID: parts[1], ContainerID: parts[2]}, nil
}

type Container struct {
	ContainerRef
	PartitionKeyPath string
	CreatedAt        time.Time
}

type CreateContainerInput struct {
	ContainerRef
	PartitionKeyPath string
}

// PartitionKeyOf extracts the partition key value from doc. A document
// without the path has no partition key and yields nil.
func (c Container) PartitionKeyOf(doc json.RawMessage) (json.RawMessage, error) {
	path := strings.Trim(c.PartitionKeyPath, "/")
	if path == "" {
		return nil, fmt.Errorf("container %s has no partition key path", c.Path())
	}
	current := doc
	for _, segment := range strings.Split(path, "/") {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(current, &object); err != nil {
			return nil, nil
		}
		next, ok := object[segment]
		if !ok {
			return nil, nil
		}
		current = next
	}
	return current, nil
}

// DocumentID returns the document's string id.
func DocumentID(doc json.RawMessage) (string, error) {
	var envelope struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(doc, &envelope); err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}
	if envelope.ID == nil || *envelope.ID == "" {
		return "", fmt.Errorf("document has no string id")
	}
	return *envelope.ID, nil
}
