// internal/store/state.go
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/galois26/event-ingester/internal/model"
)

// Store persists the published artifact as a single JSON file.
// There is exactly one writer; readers only ever see a complete file.
type Store struct {
	fs   afero.Fs
	path string
}

func New(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

func (s *Store) Path() string { return s.path }

// Save replaces the artifact by writing a sibling temp file and renaming it
// over the target. On error the previous artifact is left as it was.
func (s *Store) Save(a model.Artifact) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// Load reads the current artifact. A missing file wraps os.ErrNotExist.
func (s *Store) Load() (model.Artifact, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	var a model.Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return model.Artifact{}, fmt.Errorf("parse artifact: %w", err)
	}
	return a, nil
}
