// Package catalog holds the in-memory parts catalog. A Store is immutable once
// built; reloading produces a new Store which callers swap in atomically.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

// Store maps part identifiers to records and remembers source order.
type Store struct {
	parts map[string]domain.Part
	order []string
	// model -> part IDs in catalog order
	byModel map[string][]string
}

// New builds a Store from parts. A duplicate ID replaces the earlier record
// but keeps its original position.
func New(parts []domain.Part) *Store {
	s := &Store{
		parts:   make(map[string]domain.Part, len(parts)),
		byModel: make(map[string][]string),
	}
	for _, p := range parts {
		if _, dup := s.parts[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.parts[p.ID] = p
	}
	for _, id := range s.order {
		for _, m := range s.parts[id].CompatibleModels {
			s.byModel[m] = append(s.byModel[m], id)
		}
	}
	return s
}

// entry is the on-disk shape of a catalog record; the ID is the object key.
type entry struct {
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	CompatibleModels    []string `json:"compatible_models"`
	InstallInstructions string   `json:"install_instructions"`
}

// Load decodes a JSON object keyed by part ID. Key order in the document is
// preserved and becomes the index order. Every record is validated.
func Load(r io.Reader) (*Store, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("catalog: read: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("catalog: expected JSON object, got %v", tok)
	}

	var parts []domain.Part
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("catalog: read key: %w", err)
		}
		id, _ := tok.(string)

		var e entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("catalog: decode %s: %w", id, err)
		}
		p := domain.Part{
			ID:                  strings.ToUpper(strings.TrimSpace(id)),
			Name:                e.Name,
			Type:                e.Type,
			CompatibleModels:    e.CompatibleModels,
			InstallInstructions: e.InstallInstructions,
		}
		if err := domain.ValidatePart(p); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		parts = append(parts, p)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("catalog: read: %w", err)
	}
	return New(parts), nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Get returns the part with the given ID.
func (s *Store) Get(id string) (domain.Part, bool) {
	p, ok := s.parts[id]
	return p, ok
}

// Has reports whether id is in the catalog.
func (s *Store) Has(id string) bool {
	_, ok := s.parts[id]
	return ok
}

// Len returns the number of parts.
func (s *Store) Len() int { return len(s.order) }

// Parts returns all records in catalog order.
func (s *Store) Parts() []domain.Part {
	out := make([]domain.Part, len(s.order))
	for i, id := range s.order {
		out[i] = s.parts[id]
	}
	return out
}

// Search returns parts whose ID or name contains keyword, case-insensitively.
// An empty keyword matches nothing.
func (s *Store) Search(keyword string) []domain.Part {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	var out []domain.Part
	for _, id := range s.order {
		p := s.parts[id]
		if strings.Contains(strings.ToLower(p.ID), kw) || strings.Contains(strings.ToLower(p.Name), kw) {
			out = append(out, p)
		}
	}
	return out
}

// CompatibleWith returns the parts that list model as compatible.
func (s *Store) CompatibleWith(model string) []domain.Part {
	ids := s.byModel[model]
	out := make([]domain.Part, len(ids))
	for i, id := range ids {
		out[i] = s.parts[id]
	}
	return out
}
