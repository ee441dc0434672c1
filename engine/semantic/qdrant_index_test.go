package semantic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
)

func newTestQdrantIndex(pts *mockPoints, emb Embedder) (*QdrantIndex, *mockCollections) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{}}
	x := NewQdrantIndex(NewWithClients(pts, cols, "parts"), emb, nil)
	tick := int64(0)
	x.now = func() time.Time {
		tick++
		return time.Unix(0, tick)
	}
	return x, cols
}

func TestQdrantIndexBuild(t *testing.T) {
	pts := &mockPoints{}
	x, cols := newTestQdrantIndex(pts, &keywordEmbedder{axes: []string{"valve", "gasket"}})
	if x.Built() {
		t.Fatal("new index must be unbuilt")
	}
	if err := x.Build(context.Background(), testParts); err != nil {
		t.Fatal(err)
	}
	if !x.Built() || x.Len() != 3 {
		t.Fatalf("expected 3 documents, got %d", x.Len())
	}
	if len(pts.upserts) != 1 || len(pts.upserts[0].GetPoints()) != 3 || pts.upserts[0].GetCollectionName() != "parts_1" {
		t.Fatalf("expected one upsert of 3 points into parts_1, got %v", pts.upserts)
	}
	if cols.aliases["parts"] != "parts_1" {
		t.Fatalf("alias points at %q", cols.aliases["parts"])
	}
}

func TestQdrantIndexRebuildSwapsAlias(t *testing.T) {
	pts := &mockPoints{}
	x, cols := newTestQdrantIndex(pts, &keywordEmbedder{axes: []string{"valve"}})
	ctx := context.Background()
	if err := x.Build(ctx, testParts); err != nil {
		t.Fatal(err)
	}
	if err := x.Build(ctx, testParts[:1]); err != nil {
		t.Fatal(err)
	}

	if cols.aliases["parts"] != "parts_2" || x.Len() != 1 {
		t.Fatalf("alias=%q len=%d", cols.aliases["parts"], x.Len())
	}
	if len(pts.upserts[1].GetPoints()) != 1 || pts.upserts[1].GetCollectionName() != "parts_2" {
		t.Fatal("rebuild must fill a fresh collection")
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "parts_1" {
		t.Fatalf("previous collection not dropped: %v", cols.deleted)
	}
}

func TestQdrantIndexBuildFailureKeepsLiveCollection(t *testing.T) {
	pts := &mockPoints{}
	x, cols := newTestQdrantIndex(pts, &keywordEmbedder{axes: []string{"valve"}})
	ctx := context.Background()
	if err := x.Build(ctx, testParts); err != nil {
		t.Fatal(err)
	}

	pts.upsertErr = errors.New("unavailable")
	if err := x.Build(ctx, testParts); err == nil {
		t.Fatal("expected error")
	}
	if x.Built() {
		t.Fatal("failed build must leave index unbuilt")
	}
	if cols.aliases["parts"] != "parts_1" {
		t.Fatalf("alias moved to %q after a failed build", cols.aliases["parts"])
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "parts_2" {
		t.Fatalf("half-built collection not dropped: %v", cols.deleted)
	}
}

func TestQdrantIndexAliasFailure(t *testing.T) {
	x, cols := newTestQdrantIndex(&mockPoints{}, &keywordEmbedder{axes: []string{"valve"}})
	cols.aliasErr = errors.New("conflict")
	if err := x.Build(context.Background(), testParts); err == nil {
		t.Fatal("expected error")
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "parts_1" {
		t.Fatalf("orphaned collection not dropped: %v", cols.deleted)
	}
}

func TestQdrantIndexReplacesPlainCollection(t *testing.T) {
	x, cols := newTestQdrantIndex(&mockPoints{}, &keywordEmbedder{axes: []string{"valve"}})
	cols.listResp = &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "parts"}}}
	if err := x.Build(context.Background(), testParts); err != nil {
		t.Fatal(err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "parts" {
		t.Fatalf("plain collection under the alias name not removed: %v", cols.deleted)
	}
	if cols.aliases["parts"] != "parts_1" {
		t.Fatalf("alias points at %q", cols.aliases["parts"])
	}
}

func TestQdrantIndexRetrieve(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{Result: []*pb.ScoredPoint{
		{Score: 0.9, Payload: map[string]*pb.Value{"part_id": stringValue("PS11752778"), "content": stringValue("valve")}},
	}}}
	x, _ := newTestQdrantIndex(pts, &keywordEmbedder{axes: []string{"valve"}})

	if hits, _ := x.Retrieve(context.Background(), "valve", 2); len(hits) != 0 {
		t.Fatal("unbuilt index must return nothing")
	}
	x.Build(context.Background(), testParts)
	hits, err := x.Retrieve(context.Background(), "valve", 2)
	if err != nil || len(hits) != 1 || hits[0].Score != float64(float32(0.9)) {
		t.Fatalf("unexpected %+v %v", hits, err)
	}
	if pts.searches[0].GetCollectionName() != "parts" {
		t.Fatal("searches must go through the alias")
	}
}

func TestQdrantIndexEmptyCatalogSkipsSearch(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{Result: []*pb.ScoredPoint{{Score: 0.9}}}}
	x, _ := newTestQdrantIndex(pts, &keywordEmbedder{axes: []string{"valve"}})
	ctx := context.Background()
	x.Build(ctx, testParts)
	if err := x.Build(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if hits, _ := x.Retrieve(ctx, "valve", 2); len(hits) != 0 || len(pts.searches) != 0 {
		t.Fatalf("empty catalog must not retrieve old documents: %v", hits)
	}
}

func TestQdrantIndexSearchFailureYieldsNoHits(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("down")}
	x, _ := newTestQdrantIndex(pts, &keywordEmbedder{axes: []string{"valve"}})
	x.Build(context.Background(), testParts)
	hits, err := x.Retrieve(context.Background(), "valve", 2)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected no hits, got %v %v", hits, err)
	}
}

func TestQdrantIndexAttach(t *testing.T) {
	x, _ := newTestQdrantIndex(&mockPoints{count: 0}, &keywordEmbedder{})
	if err := x.Attach(context.Background()); !errors.Is(err, domain.ErrIndexNotBuilt) {
		t.Fatalf("expected ErrIndexNotBuilt, got %v", err)
	}
	x, _ = newTestQdrantIndex(&mockPoints{count: 6}, &keywordEmbedder{})
	if err := x.Attach(context.Background()); err != nil || x.Len() != 6 {
		t.Fatalf("unexpected %v len=%d", err, x.Len())
	}
}
