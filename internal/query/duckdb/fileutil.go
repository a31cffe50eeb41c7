package duckdb

import (
	"fmt"
	"io"
	"os"
)

// writeFile copies reader into a new file at path and reports the number of
// bytes written.
func writeFile(path string, reader io.Reader) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	written, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if copyErr != nil {
		return written, fmt.Errorf("copy %s: %w", path, copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w", path, closeErr)
	}
	return written, nil
}
