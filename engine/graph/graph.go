// Package graph mirrors the parts catalog into Neo4j as a compatibility
// graph, (:Part)-[:FITS]->(:Model), and answers reverse lookups from it.
package graph

import (
	"context"
	"fmt"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var schema = []string{
	`CREATE CONSTRAINT part_id IF NOT EXISTS FOR (p:Part) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT model_id IF NOT EXISTS FOR (m:Model) REQUIRE m.id IS UNIQUE`,
}

const clearFitsCypher = `UNWIND $ids AS id
MATCH (:Part {id: id})-[r:FITS]->()
DELETE r`

const mergePartsCypher = `UNWIND $parts AS p
MERGE (n:Part {id: p.id})
SET n.name = p.name, n.type = p.type, n.install_instructions = p.install
WITH n, p
UNWIND p.models AS m
MERGE (md:Model {id: m})
MERGE (n)-[:FITS]->(md)`

const pruneCypher = `MATCH (n:Part) WHERE NOT n.id IN $ids DETACH DELETE n`

const pruneModelsCypher = `MATCH (m:Model) WHERE NOT (m)<-[:FITS]-() DELETE m`

const partColumns = `n.id AS id, n.name AS name, n.type AS type,
       n.install_instructions AS install, [(n)-[:FITS]->(x:Model) | x.id] AS models`

// CompatGraph is the Neo4j-backed compatibility graph.
type CompatGraph struct {
	opener SessionOpener
}

// New creates a CompatGraph on a driver.
func New(driver neo4j.DriverWithContext) *CompatGraph {
	return &CompatGraph{opener: driverOpener{driver: driver}}
}

// NewWithOpener creates a CompatGraph on any session source.
func NewWithOpener(opener SessionOpener) *CompatGraph {
	return &CompatGraph{opener: opener}
}

// EnsureSchema creates the uniqueness constraints.
func (g *CompatGraph) EnsureSchema(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	for _, stmt := range schema {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graph: schema: %w", err)
		}
	}
	return nil
}

func partParams(parts []domain.Part) (ids []string, rows []map[string]any) {
	ids = make([]string, len(parts))
	rows = make([]map[string]any, len(parts))
	for i, p := range parts {
		models := make([]any, len(p.CompatibleModels))
		for j, m := range p.CompatibleModels {
			models[j] = m
		}
		ids[i] = p.ID
		rows[i] = map[string]any{
			"id":      p.ID,
			"name":    p.Name,
			"type":    p.Type,
			"install": p.InstallInstructions,
			"models":  models,
		}
	}
	return ids, rows
}

// SaveParts upserts parts and replaces their FITS edges in one
// transaction.
func (g *CompatGraph) SaveParts(ctx context.Context, parts []domain.Part) error {
	if len(parts) == 0 {
		return nil
	}
	ids, rows := partParams(parts)
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx, clearFitsCypher, map[string]any{"ids": ids}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, mergePartsCypher, map[string]any{"parts": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: save %d parts: %w", len(parts), err)
	}
	return nil
}

// SyncCatalog makes the graph match parts exactly: upserts every part,
// then removes parts and models no longer referenced.
func (g *CompatGraph) SyncCatalog(ctx context.Context, parts []domain.Part) error {
	if err := g.SaveParts(ctx, parts); err != nil {
		return err
	}
	ids, _ := partParams(parts)
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx, pruneCypher, map[string]any{"ids": ids}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, pruneModelsCypher, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: prune: %w", err)
	}
	return nil
}

// GetPart returns one part with its compatible models.
func (g *CompatGraph) GetPart(ctx context.Context, id string) (domain.Part, error) {
	parts, err := g.query(ctx, `MATCH (n:Part {id: $id}) RETURN `+partColumns, map[string]any{"id": id})
	if err != nil {
		return domain.Part{}, fmt.Errorf("graph: get part %s: %w", id, err)
	}
	if len(parts) == 0 {
		return domain.Part{}, fmt.Errorf("graph: get part %s: %w", id, domain.ErrPartNotFound)
	}
	return parts[0], nil
}

// PartsForModel lists the parts that fit model, ordered by part ID.
func (g *CompatGraph) PartsForModel(ctx context.Context, model string) ([]domain.Part, error) {
	parts, err := g.query(ctx,
		`MATCH (n:Part)-[:FITS]->(:Model {id: $model}) RETURN `+partColumns+` ORDER BY id`,
		map[string]any{"model": model})
	if err != nil {
		return nil, fmt.Errorf("graph: parts for model %s: %w", model, err)
	}
	return parts, nil
}

// ModelsForPart lists the models a part fits, sorted.
func (g *CompatGraph) ModelsForPart(ctx context.Context, partID string) ([]string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (:Part {id: $id})-[:FITS]->(m:Model) RETURN m.id AS id ORDER BY id`,
		map[string]any{"id": partID})
	if err != nil {
		return nil, fmt.Errorf("graph: models for part %s: %w", partID, err)
	}
	var models []string
	for result.Next(ctx) {
		id, _, err := neo4j.GetRecordValue[string](result.Record(), "id")
		if err != nil {
			return nil, fmt.Errorf("graph: models for part %s: %w", partID, err)
		}
		models = append(models, id)
	}
	return models, result.Err()
}

func (g *CompatGraph) query(ctx context.Context, cypher string, params map[string]any) ([]domain.Part, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var parts []domain.Part
	for result.Next(ctx) {
		p, err := partFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, result.Err()
}

func partFromRecord(rec *neo4j.Record) (domain.Part, error) {
	id, _, err := neo4j.GetRecordValue[string](rec, "id")
	if err != nil {
		return domain.Part{}, err
	}
	p := domain.Part{
		ID:                  id,
		Name:                strValue(rec, "name"),
		Type:                strValue(rec, "type"),
		InstallInstructions: strValue(rec, "install"),
	}
	if raw, ok := rec.Get("models"); ok {
		list, _ := raw.([]any)
		for _, m := range list {
			if s, ok := m.(string); ok {
				p.CompatibleModels = append(p.CompatibleModels, s)
			}
		}
	}
	return p, nil
}

func strValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
