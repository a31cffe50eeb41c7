package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/docsheet/docsheet/internal/query"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// FormatForPath picks the export format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export file %q: use .parquet or .json", path)
	}
}

type Summary struct {
	Format      Format
	RecordCount int64
	Bytes       int64
}

type parquetItem struct {
	Seq      int64  `parquet:"seq"`
	ID       string `parquet:"id,optional"`
	Document string `parquet:"document_json"`
}

// WriteParquet writes one row per result item, in result order.
func WriteParquet(w io.Writer, result query.Result) (int64, error) {
	rows := make([]parquetItem, 0, len(result.Items))
	for i, item := range result.Items {
		rows = append(rows, parquetItem{
			Seq:      int64(i),
			ID:       documentID(item),
			Document: string(item),
		})
	}

	writer := parquet.NewGenericWriter[parquetItem](w)
	if _, err := writer.Write(rows); err != nil {
		return 0, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close parquet writer: %w", err)
	}
	return int64(len(rows)), nil
}

type jsonExport struct {
	SQL               string           `json:"sql"`
	PartitionKey      json.RawMessage  `json:"partitionKey,omitempty"`
	Items             []query.Document `json:"items"`
	RequestCharge     float64          `json:"requestCharge"`
	ContinuationToken string           `json:"continuationToken,omitempty"`
	Pages             int              `json:"pages"`
	ElapsedMillis     int64            `json:"elapsedMs"`
	Error             string           `json:"error,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
}

// WriteJSON writes the result with its metadata as an indented JSON document.
func WriteJSON(w io.Writer, result query.Result) (int64, error) {
	payload := jsonExport{
		SQL:               result.Query.SQL,
		Items:             result.Items,
		RequestCharge:     result.RequestCharge,
		ContinuationToken: result.ContinuationToken,
		Pages:             result.Pages,
		ElapsedMillis:     result.Elapsed.Milliseconds(),
		Warnings:          result.Warnings,
	}
	if payload.Items == nil {
		payload.Items = []query.Document{}
	}
	if !result.Query.PartitionKey.IsAbsent() {
		payload.PartitionKey = json.RawMessage(result.Query.PartitionKey.String())
	}
	if result.Err != nil {
		payload.Error = result.Err.Error()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return 0, fmt.Errorf("encode json export: %w", err)
	}
	return int64(len(payload.Items)), nil
}

// ToFile writes result to path in the format implied by its extension.
func ToFile(path string, result query.Result) (Summary, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return Summary{}, err
	}
	file, err := os.Create(path)
	if err != nil {
		return Summary{}, fmt.Errorf("create export file: %w", err)
	}

	var count int64
	switch format {
	case FormatParquet:
		count, err = WriteParquet(file, result)
	default:
		count, err = WriteJSON(file, result)
	}
	if err != nil {
		_ = file.Close()
		return Summary{}, err
	}
	info, statErr := file.Stat()
	if closeErr := file.Close(); closeErr != nil {
		return Summary{}, fmt.Errorf("close export file: %w", closeErr)
	}
	summary := Summary{Format: format, RecordCount: count}
	if statErr == nil {
		summary.Bytes = info.Size()
	}
	return summary, nil
}

func documentID(item query.Document) string {
	var probe struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(item, &probe); err != nil {
		return ""
	}
	switch id := probe.ID.(type) {
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
