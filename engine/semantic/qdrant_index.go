package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

// QdrantIndex keeps part documents in Qdrant so the index survives restarts
// and can be shared by several API replicas. The store's name is an alias;
// every build fills a fresh collection and then repoints the alias.
type QdrantIndex struct {
	store    *VectorStore
	embedder Embedder
	logger   *slog.Logger
	docs     atomic.Int64 // -1 when not built
	now      func() time.Time
}

// NewQdrantIndex creates an unbuilt index over store.
func NewQdrantIndex(store *VectorStore, embedder Embedder, logger *slog.Logger) *QdrantIndex {
	if logger == nil {
		logger = slog.Default()
	}
	x := &QdrantIndex{store: store, embedder: embedder, logger: logger, now: time.Now}
	x.docs.Store(-1)
	return x
}

// Build embeds every part into a new collection and swaps the alias onto
// it. Searches keep using the previous collection until the swap, and a
// failed build leaves it untouched.
func (x *QdrantIndex) Build(ctx context.Context, parts []domain.Part) error {
	docs := Documents(parts)
	if err := x.build(ctx, docs); err != nil {
		x.docs.Store(-1)
		return fmt.Errorf("semantic: qdrant build: %w", err)
	}
	x.docs.Store(int64(len(docs)))
	x.logger.Info("qdrant index built", "documents", len(docs), "alias", x.store.collection)
	return nil
}

func (x *QdrantIndex) build(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := embedDocuments(ctx, x.embedder, docs); err != nil {
		return err
	}
	live, err := x.store.AliasTarget(ctx)
	if err != nil {
		return err
	}

	next := x.store.WithCollection(fmt.Sprintf("%s_%d", x.store.collection, x.now().UnixNano()))
	if err := next.EnsureCollection(ctx, len(docs[0].Vector)); err != nil {
		return err
	}
	if err := next.Upsert(ctx, docs); err != nil {
		x.drop(next)
		return err
	}

	if live == "" {
		// A plain collection under the alias name blocks the alias.
		legacy, err := x.store.hasCollection(ctx)
		if err == nil && legacy {
			err = x.store.DeleteCollection(ctx)
		}
		if err != nil {
			x.drop(next)
			return err
		}
	}
	if err := x.store.PointAlias(ctx, next.collection, live != ""); err != nil {
		x.drop(next)
		return err
	}
	if live != "" && live != next.collection {
		x.drop(x.store.WithCollection(live))
	}
	return nil
}

// drop deletes a collection that is no longer, or never was, behind the alias.
func (x *QdrantIndex) drop(v *VectorStore) {
	if err := v.DeleteCollection(context.Background()); err != nil {
		x.logger.Warn("qdrant collection cleanup failed", "collection", v.collection, "error", err)
	}
}

// Attach marks the index built from an existing, populated collection.
func (x *QdrantIndex) Attach(ctx context.Context) error {
	n, err := x.store.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("semantic: attach: collection %s is empty: %w", x.store.collection, domain.ErrIndexNotBuilt)
	}
	x.docs.Store(int64(n))
	return nil
}

// Built reports whether the last build succeeded.
func (x *QdrantIndex) Built() bool { return x.docs.Load() >= 0 }

// Len is the number of documents from the last successful build.
func (x *QdrantIndex) Len() int {
	if n := x.docs.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Retrieve searches the collection. Qdrant orders by score; ties are not
// guaranteed to keep catalog order. An index built from an empty catalog
// never searches, since the alias still names the previous collection.
func (x *QdrantIndex) Retrieve(ctx context.Context, query string, topK int) ([]domain.Hit, error) {
	if x.Len() == 0 || topK <= 0 {
		return nil, nil
	}
	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		x.logger.Warn("query embedding failed, retrieval unavailable", "error", err)
		return nil, nil
	}
	hits, err := x.store.Search(ctx, vecs[0], topK)
	if err != nil {
		x.logger.Warn("qdrant search failed, retrieval unavailable", "error", err)
		return nil, nil
	}
	return hits, nil
}
