// Package semantic builds and searches the part-document index used to
// ground answers: an in-memory cosine index and a Qdrant-backed one.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentText renders the text blob embedded for a part.
func DocumentText(p domain.Part) string {
	return fmt.Sprintf("Part %s: %s for %s.\nCompatible models: %s.\nInstallation: %s",
		p.ID, p.Name, p.Type, strings.Join(p.CompatibleModels, ", "), p.InstallInstructions)
}

// Documents builds one document per part, in catalog order.
func Documents(parts []domain.Part) []domain.Document {
	docs := make([]domain.Document, len(parts))
	for i, p := range parts {
		docs[i] = domain.Document{PartID: p.ID, Text: DocumentText(p)}
	}
	return docs
}

// embedDocuments fills in the vectors of docs with one batch call.
func embedDocuments(ctx context.Context, e Embedder, docs []domain.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("got %d vectors for %d documents: %w", len(vecs), len(docs), domain.ErrEmptyEmbedding)
	}
	for i := range docs {
		if len(vecs[i]) == 0 {
			return fmt.Errorf("document %s: %w", docs[i].PartID, domain.ErrEmptyEmbedding)
		}
		docs[i].Vector = vecs[i]
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// norm or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// FormatContext renders hits as a bulleted block for a grounded prompt.
func FormatContext(hits []domain.Hit) string {
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = "- " + h.Text
	}
	return strings.Join(lines, "\n")
}

type snapshot struct {
	docs []domain.Document
}

// Index is an in-memory vector index over catalog documents. A built
// snapshot is immutable; rebuilds swap in a new one.
type Index struct {
	embedder Embedder
	logger   *slog.Logger
	snap     atomic.Pointer[snapshot]
}

// NewIndex creates an empty, unbuilt index.
func NewIndex(embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{embedder: embedder, logger: logger}
}

// Build embeds every part and replaces the live snapshot. On failure the
// index is left unbuilt and the error returned.
func (x *Index) Build(ctx context.Context, parts []domain.Part) error {
	docs := Documents(parts)
	if x.embedder == nil {
		x.snap.Store(nil)
		return fmt.Errorf("semantic: build: no embedder configured")
	}
	if err := embedDocuments(ctx, x.embedder, docs); err != nil {
		x.snap.Store(nil)
		return fmt.Errorf("semantic: build: %w", err)
	}
	x.snap.Store(&snapshot{docs: docs})
	x.logger.Info("index built", "documents", len(docs))
	return nil
}

// Built reports whether a snapshot is live.
func (x *Index) Built() bool { return x.snap.Load() != nil }

// Len is the number of documents in the live snapshot.
func (x *Index) Len() int {
	s := x.snap.Load()
	if s == nil {
		return 0
	}
	return len(s.docs)
}

// Retrieve returns up to topK documents most similar to query, best first.
// Ties keep catalog order. An unbuilt index or a failed query embedding
// yields no hits.
func (x *Index) Retrieve(ctx context.Context, query string, topK int) ([]domain.Hit, error) {
	s := x.snap.Load()
	if s == nil || topK <= 0 || len(s.docs) == 0 {
		return nil, nil
	}
	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		x.logger.Warn("query embedding failed, retrieval unavailable", "error", err)
		return nil, nil
	}
	q := vecs[0]

	hits := make([]domain.Hit, len(s.docs))
	for i, d := range s.docs {
		hits[i] = domain.Hit{Score: Cosine(q, d.Vector), Document: d}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
