package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLWriter appends one JSON object per line to a file, newline-terminated
// (spec.md §6 "Audit JSONL file layout"). Writes are serialized internally
// (spec.md §5 "The Audit Logger serializes file writes internally").
type JSONLWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewJSONLWriter opens (creating if necessary) the append-only file at path.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create jsonl dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open jsonl file: %w", err)
	}
	return &JSONLWriter{path: path, file: f}, nil
}

// Append writes v as one JSON line and fsyncs the file.
func (w *JSONLWriter) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal jsonl record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("store: write jsonl record: %w", err)
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
