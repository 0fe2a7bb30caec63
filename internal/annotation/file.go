package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File is the JSON interchange format for an annotation collection snapshot
// exported by (and re-imported into) the desktop application. Persistence of
// the session itself remains the application's concern; this format only
// moves data across the boundary.
type File struct {
	// Categories is the configured category vocabulary, in display order.
	Categories []string `json:"categories"`

	// Annotations is the collection in display order.
	Annotations []Annotation `json:"annotations"`
}

// LoadFile reads a [File] from path and returns a populated [MemStore].
func LoadFile(path string) (*MemStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("annotation: read %q: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("annotation: parse %q: %w", path, err)
	}

	store := NewMemStore(f.Categories)
	for i, a := range f.Annotations {
		if _, err := store.Add(a); err != nil {
			return nil, fmt.Errorf("annotation: load %q: annotation %d: %w", path, i, err)
		}
	}
	return store, nil
}

// SaveFile writes the store snapshot to path. The write is atomic: content
// goes to a temporary file in the same directory which then replaces the
// target, so a crash never leaves a truncated collection behind.
func SaveFile(path string, store Store) error {
	f := File{
		Categories:  store.Vocabulary(),
		Annotations: store.List(nil),
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("annotation: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".storymark-*.json")
	if err != nil {
		return fmt.Errorf("annotation: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("annotation: write %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("annotation: close %q: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("annotation: replace %q: %w", path, err)
	}
	return nil
}
