// Package storage persists one aggregate JSON value per scrape run.
package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONStore reads and writes a single JSON document at a fixed path.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store for the given file path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Save writes v as indented JSON, creating parent directories as needed.
func (s *JSONStore) Save(v any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load reads the stored document into out. ok reports whether the file
// existed; a missing file is not an error.
func (s *JSONStore) Load(out any) (ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}
