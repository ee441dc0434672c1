package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

// With returns a new Store holding s plus parts. A part whose ID already
// exists replaces the old record in place; new IDs are appended.
func (s *Store) With(parts ...domain.Part) *Store {
	return New(append(s.Parts(), parts...))
}

// Encode writes s in the on-disk format read by Load, keys in catalog order.
func (s *Store) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, id := range s.order {
		p := s.parts[id]
		key, err := json.Marshal(id)
		if err != nil {
			return fmt.Errorf("catalog: encode %s: %w", id, err)
		}
		models := p.CompatibleModels
		if models == nil {
			models = []string{}
		}
		val, err := json.MarshalIndent(entry{
			Name:                p.Name,
			Type:                p.Type,
			CompatibleModels:    models,
			InstallInstructions: p.InstallInstructions,
		}, "  ", "  ")
		if err != nil {
			return fmt.Errorf("catalog: encode %s: %w", id, err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(s.order)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile replaces path with s. The file is written to a temporary file
// in the same directory and renamed over path, so readers never see a
// partial catalog.
func WriteFile(path string, s *Store) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}

// FileWriter merges upserted parts into a catalog file. Writes from one
// process are serialized.
type FileWriter struct {
	path string
	mu   sync.Mutex
}

// NewFileWriter returns a FileWriter for path. The file need not exist yet.
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Path is the catalog file being written.
func (f *FileWriter) Path() string { return f.path }

// SaveParts adds or replaces parts in the catalog file.
func (f *FileWriter) SaveParts(ctx context.Context, parts []domain.Part) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := LoadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		store = New(nil)
	} else if err != nil {
		return err
	}
	return WriteFile(f.path, store.With(parts...))
}
