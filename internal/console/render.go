package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/docsheet/docsheet/internal/catalog"
	"github.com/docsheet/docsheet/internal/config"
	"github.com/docsheet/docsheet/internal/query"
	"github.com/docsheet/docsheet/internal/sheet"
)

const valueColumn = "value"

func renderRun(w io.Writer, format string, run sheet.Run) error {
	result := run.Result
	if format == config.OutputJSON {
		if err := renderJSON(w, result.Items); err != nil {
			return err
		}
	} else {
		renderTable(w, result.Items)
	}
	renderSummary(w, result)
	return nil
}

func renderJSON(w io.Writer, items []query.Document) error {
	for _, item := range items {
		var out bytes.Buffer
		if err := json.Indent(&out, item, "", "  "); err != nil {
			return fmt.Errorf("format item: %w", err)
		}
		_, _ = fmt.Fprintln(w, out.String())
	}
	return nil
}

// renderTable shows object items with one column per top-level key, in the
// order keys are first seen. Anything else goes in a single value column.
func renderTable(w io.Writer, items []query.Document) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, "(no results)")
		return
	}

	columns := []string{}
	seen := map[string]bool{}
	decoded := make([]map[string]json.RawMessage, len(items))
	for i, item := range items {
		keys, fields, ok := objectFields(item)
		if !ok {
			keys = []string{valueColumn}
			fields = map[string]json.RawMessage{valueColumn: json.RawMessage(item)}
		}
		decoded[i] = fields
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	rows := make([][]string, 0, len(items))
	for _, fields := range decoded {
		row := make([]string, len(columns))
		for c, column := range columns {
			if raw, ok := fields[column]; ok {
				row[c] = cellText(raw)
			}
		}
		rows = append(rows, row)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func renderSummary(w io.Writer, result query.Result) {
	_, _ = fmt.Fprintf(w, "%d items, %d pages, %.2f RU, %s\n",
		len(result.Items), result.Pages, result.RequestCharge, result.Elapsed.Round(time.Millisecond))
	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if !result.Failed() {
		return
	}
	if result.Cancelled() {
		_, _ = fmt.Fprintln(w, "cancelled")
	} else {
		_, _ = fmt.Fprintf(w, "error: %v\n", result.Err)
	}
	if result.ContinuationToken != "" {
		_, _ = fmt.Fprintln(w, `partial result; \resume continues from the last page read`)
	}
}

func renderContainers(w io.Writer, containers []catalog.Container) {
	if len(containers) == 0 {
		_, _ = fmt.Fprintln(w, "(no containers)")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"container", "partition key", "created"})
	table.SetAutoFormatHeaders(false)
	for _, container := range containers {
		table.Append([]string{
			container.DatabaseID + "/" + container.ContainerID,
			container.PartitionKeyPath,
			container.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
}

// objectFields decodes a JSON object keeping its key order.
func objectFields(item query.Document) ([]string, map[string]json.RawMessage, bool) {
	decoder := json.NewDecoder(bytes.NewReader(item))
	token, err := decoder.Token()
	if err != nil {
		return nil, nil, false
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, nil, false
	}

	keys := []string{}
	fields := map[string]json.RawMessage{}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, false
		}
		key, ok := token.(string)
		if !ok {
			return nil, nil, false
		}
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return nil, nil, false
		}
		if _, dup := fields[key]; !dup {
			keys = append(keys, key)
		}
		fields[key] = raw
	}
	return keys, fields, true
}

func cellText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '{', '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err == nil {
			return compact.String()
		}
	}
	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(trimmed)
}
