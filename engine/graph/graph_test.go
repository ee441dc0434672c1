package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// --- Mocks ---

type mockResult struct {
	records []*neo4j.Record
	idx     int
	err     error
}

func newMockResult(records ...*neo4j.Record) *mockResult { return &mockResult{records: records} }

func (m *mockResult) Next(context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}
func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }
func (m *mockResult) Err() error            { return m.err }

// trackingTx records all cypher queries executed and replies from a queue.
type trackingTx struct {
	queries []string
	params  []map[string]any
	results []*mockResult
	failOn  string
}

func (t *trackingTx) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	t.queries = append(t.queries, cypher)
	t.params = append(t.params, params)
	if t.failOn != "" && strings.Contains(cypher, t.failOn) {
		return nil, errors.New("neo4j unavailable")
	}
	if len(t.results) > 0 {
		r := t.results[0]
		t.results = t.results[1:]
		return r, nil
	}
	return newMockResult(), nil
}

type trackingSession struct {
	tx     *trackingTx
	writes int
	closed int
}

func (s *trackingSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.tx.Run(ctx, cypher, params)
}
func (s *trackingSession) Close(context.Context) error { s.closed++; return nil }
func (s *trackingSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	s.writes++
	return work(s.tx)
}

type trackingOpener struct {
	session *trackingSession
}

func (o *trackingOpener) OpenSession(context.Context) CypherSession { return o.session }

func newTrackingGraph() (*CompatGraph, *trackingSession) {
	sess := &trackingSession{tx: &trackingTx{}}
	return NewWithOpener(&trackingOpener{session: sess}), sess
}

func partRecord(id, name, typ string, models ...any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"id", "name", "type", "install", "models"},
		Values: []any{id, name, typ, "steps", models},
	}
}

var graphParts = []domain.Part{
	{ID: "PS11752778", Name: "Inlet Valve", Type: "Refrigerator", CompatibleModels: []string{"WRS325SDHZ", "WRF555SDFZ"}},
	{ID: "PS11750057", Name: "Door Gasket", Type: "Dishwasher"},
}

// --- Tests ---

func TestEnsureSchema(t *testing.T) {
	g, sess := newTrackingGraph()
	if err := g.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sess.tx.queries) != 2 || !strings.Contains(sess.tx.queries[0], "CONSTRAINT") {
		t.Fatalf("unexpected schema queries %v", sess.tx.queries)
	}
	if sess.closed != 1 {
		t.Fatal("session not closed")
	}
}

func TestSaveParts(t *testing.T) {
	g, sess := newTrackingGraph()
	if err := g.SaveParts(context.Background(), graphParts); err != nil {
		t.Fatal(err)
	}
	if sess.writes != 1 || len(sess.tx.queries) != 2 {
		t.Fatalf("expected one transaction with 2 statements, got %d/%d", sess.writes, len(sess.tx.queries))
	}
	if sess.tx.queries[0] != clearFitsCypher || sess.tx.queries[1] != mergePartsCypher {
		t.Fatal("FITS edges must be cleared before merging")
	}
	rows := sess.tx.params[1]["parts"].([]map[string]any)
	if len(rows) != 2 || rows[0]["id"] != "PS11752778" || len(rows[0]["models"].([]any)) != 2 {
		t.Fatalf("unexpected rows %v", rows)
	}
	if ids := sess.tx.params[0]["ids"].([]string); ids[1] != "PS11750057" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestSavePartsEmpty(t *testing.T) {
	g, sess := newTrackingGraph()
	if err := g.SaveParts(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(sess.tx.queries) != 0 {
		t.Fatal("expected no queries")
	}
}

func TestSavePartsError(t *testing.T) {
	g, sess := newTrackingGraph()
	sess.tx.failOn = "MERGE"
	if err := g.SaveParts(context.Background(), graphParts); err == nil {
		t.Fatal("expected error")
	}
}

func TestSyncCatalogPrunes(t *testing.T) {
	g, sess := newTrackingGraph()
	if err := g.SyncCatalog(context.Background(), graphParts); err != nil {
		t.Fatal(err)
	}
	if len(sess.tx.queries) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(sess.tx.queries))
	}
	if sess.tx.queries[2] != pruneCypher || sess.tx.queries[3] != pruneModelsCypher {
		t.Fatal("expected prune statements last")
	}
	if ids := sess.tx.params[2]["ids"].([]string); len(ids) != 2 {
		t.Fatalf("unexpected keep list %v", ids)
	}
}

func TestGetPart(t *testing.T) {
	g, sess := newTrackingGraph()
	sess.tx.results = []*mockResult{newMockResult(partRecord("PS11752778", "Inlet Valve", "Refrigerator", "WRS325SDHZ"))}
	p, err := g.GetPart(context.Background(), "PS11752778")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Inlet Valve" || p.InstallInstructions != "steps" || len(p.CompatibleModels) != 1 {
		t.Fatalf("unexpected part %+v", p)
	}
}

func TestGetPartNotFound(t *testing.T) {
	g, _ := newTrackingGraph()
	_, err := g.GetPart(context.Background(), "PS0000000")
	if !errors.Is(err, domain.ErrPartNotFound) {
		t.Fatalf("expected ErrPartNotFound, got %v", err)
	}
}

func TestPartsForModel(t *testing.T) {
	g, sess := newTrackingGraph()
	sess.tx.results = []*mockResult{newMockResult(
		partRecord("PS11752778", "Inlet Valve", "Refrigerator", "WRS325SDHZ", "WRF555SDFZ"),
		partRecord("PS12364199", "Water Filter", "Refrigerator", "WRS325SDHZ"),
	)}
	parts, err := g.PartsForModel(context.Background(), "WRS325SDHZ")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 || parts[1].ID != "PS12364199" {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if sess.tx.params[0]["model"] != "WRS325SDHZ" {
		t.Fatal("model not bound")
	}
}

func TestPartsForModelResultError(t *testing.T) {
	g, sess := newTrackingGraph()
	sess.tx.results = []*mockResult{{err: errors.New("stream reset")}}
	if _, err := g.PartsForModel(context.Background(), "X"); err == nil {
		t.Fatal("expected result error")
	}
}

func TestModelsForPart(t *testing.T) {
	g, sess := newTrackingGraph()
	sess.tx.results = []*mockResult{newMockResult(
		&neo4j.Record{Keys: []string{"id"}, Values: []any{"WRF555SDFZ"}},
		&neo4j.Record{Keys: []string{"id"}, Values: []any{"WRS325SDHZ"}},
	)}
	models, err := g.ModelsForPart(context.Background(), "PS11752778")
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0] != "WRF555SDFZ" {
		t.Fatalf("unexpected models %v", models)
	}
}

func TestModelsForPartRunError(t *testing.T) {
	g, sess := newTrackingGraph()
	sess.tx.failOn = "MATCH"
	if _, err := g.ModelsForPart(context.Background(), "PS11752778"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPartFromRecordBadID(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"id"}, Values: []any{int64(7)}}
	if _, err := partFromRecord(rec); err == nil {
		t.Fatal("expected type error")
	}
}
