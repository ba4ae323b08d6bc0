package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the registry as one JSON document, written
// atomically via a temp file and rename so a crash mid-write never
// corrupts the previous snapshot.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore uses the given file path, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

type fileDocument struct {
	Strategies []StrategyMetrics `json:"strategies"`
}

// Upsert rewrites the whole document with the record replaced.
func (f *FileStore) Upsert(_ context.Context, m StrategyMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Strategies {
		if doc.Strategies[i].Key() == m.Key() {
			doc.Strategies[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Strategies = append(doc.Strategies, m)
	}
	return f.write(doc)
}

// LoadAll returns every persisted record.
func (f *FileStore) LoadAll(_ context.Context) ([]StrategyMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc.Strategies, nil
}

// Close is a no-op; every write is already flushed and renamed.
func (f *FileStore) Close() error { return nil }

func (f *FileStore) read() (*fileDocument, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &fileDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	return &doc, nil
}

func (f *FileStore) write(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registry temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
