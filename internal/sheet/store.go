package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/docsheet/docsheet/internal/storage"
)

var ErrSheetNotFound = errors.New("sheet not found")

// Store saves sheets as JSON documents in an object store.
type Store struct {
	objects storage.ObjectStore
}

func NewStore(objects storage.ObjectStore) (*Store, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Store{objects: objects}, nil
}

func (s *Store) Save(ctx context.Context, name string, sh *Sheet) error {
	key, err := storage.BuildSheetPath(name)
	if err != nil {
		return err
	}
	payload, err := Encode(sh)
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("save sheet %q: %w", name, err)
	}
	sh.Title = name
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*Sheet, error) {
	key, err := storage.BuildSheetPath(name)
	if err != nil {
		return nil, err
	}
	reader, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("load sheet %q: %w", name, ErrSheetNotFound)
		}
		return nil, fmt.Errorf("load sheet %q: %w", name, err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	sh, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("load sheet %q: %w", name, err)
	}
	sh.Title = name
	return sh, nil
}

// List returns the names of saved sheets in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	objects, err := s.objects.List(ctx, "sheets/")
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	names := make([]string, 0, len(objects))
	for _, object := range objects {
		base := path.Base(object.Key)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(base, ".json"))
	}
	return names, nil
}

func Encode(sh *Sheet) ([]byte, error) {
	if sh == nil {
		return nil, fmt.Errorf("sheet is required")
	}
	out := *sh
	out.Text = NormalizeText(out.Text)
	if out.Parameters == nil {
		out.Parameters = []Parameter{}
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sheet: %w", err)
	}
	return payload, nil
}

func Decode(payload []byte) (*Sheet, error) {
	var sh Sheet
	if err := json.Unmarshal(payload, &sh); err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	sh.Text = NormalizeText(sh.Text)
	kept := sh.Parameters[:0]
	for _, param := range sh.Parameters {
		name := NormalizeParameterName(param.Name)
		if name == "" {
			continue
		}
		param.Name = name
		kept = append(kept, param)
	}
	sh.Parameters = kept
	return &sh, nil
}
