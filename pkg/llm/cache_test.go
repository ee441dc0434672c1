package llm

import (
	"context"
	"testing"
)

func TestCachedEmbedderEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCachedEmbedder(inner, 8)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := c.Embed(ctx, []string{"ice maker", "gasket"}); err != nil {
		t.Fatal(err)
	}
	vecs, err := c.Embed(ctx, []string{"gasket", "water filter", "ice maker"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 || inner.texts != 3 {
		t.Fatalf("expected 2 calls over 3 texts, got %d calls %d texts", inner.calls, inner.texts)
	}
	if vecs[0][0] != 6 || vecs[1][0] != 12 || vecs[2][0] != 9 {
		t.Fatalf("vectors out of order: %v", vecs)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 cached, got %d", c.Len())
	}
}

func TestCachedEmbedderAllHits(t *testing.T) {
	inner := &countingEmbedder{}
	c, _ := NewCachedEmbedder(inner, 4)
	c.Embed(context.Background(), []string{"a"})
	c.Embed(context.Background(), []string{"a"})
	if inner.calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", inner.calls)
	}
}

func TestNewCachedEmbedderInvalidSize(t *testing.T) {
	if _, err := NewCachedEmbedder(&countingEmbedder{}, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
}
