// Package ingest runs catalog part upserts through validation, document
// rendering, embedding and storage in the compatibility graph and the
// vector store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/semantic"
	"github.com/WessleyAI/partselect-assistant/pkg/fn"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
)

const (
	// UpsertSubject is the NATS subject for incoming part upserts.
	UpsertSubject = "catalog.parts.upsert"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "catalog.parts.upsert.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// VectorWriter stores embedded part documents.
type VectorWriter interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, docs []domain.Document) error
}

// GraphWriter stores parts and their model compatibility.
type GraphWriter interface {
	SaveParts(ctx context.Context, parts []domain.Part) error
}

// CatalogWriter records parts in the catalog the API serves from.
type CatalogWriter interface {
	SaveParts(ctx context.Context, parts []domain.Part) error
}

// Deps holds the external dependencies for the ingestion pipeline. Catalog,
// Vectors and Graph are optional; a nil sink is skipped. When Catalog is
// set, API instances rebuild from it after every upsert, so the other
// sinks converge on the catalog contents.
type Deps struct {
	Embedder semantic.Embedder
	Catalog  CatalogWriter
	Vectors  VectorWriter
	Graph    GraphWriter
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// --- Pipeline Stages ---

// Validate canonicalizes the part ID and runs domain validation.
var Validate fn.Stage[domain.Part, domain.Part] = func(_ context.Context, p domain.Part) fn.Result[domain.Part] {
	p.ID = strings.ToUpper(strings.TrimSpace(p.ID))
	if err := domain.ValidatePart(p); err != nil {
		return fn.Err[domain.Part](err)
	}
	return fn.Ok(p)
}

// ToDocument renders the index document for a part.
var ToDocument fn.Stage[domain.Part, Prepared] = fn.MapStage(func(p domain.Part) Prepared {
	return Prepared{Part: p, Document: domain.Document{PartID: p.ID, Text: semantic.DocumentText(p)}}
})

// NewRecord creates a stage that writes the part to the catalog. A nil
// writer passes parts through.
func NewRecord(cw CatalogWriter) fn.Stage[Prepared, Prepared] {
	return func(ctx context.Context, in Prepared) fn.Result[Prepared] {
		if cw == nil {
			return fn.Ok(in)
		}
		if err := cw.SaveParts(ctx, []domain.Part{in.Part}); err != nil {
			return fn.Err[Prepared](fmt.Errorf("catalog save: %w", err))
		}
		return fn.Ok(in)
	}
}

// NewEmbed creates a stage that embeds the document text. A nil embedder
// passes documents through without vectors.
func NewEmbed(e semantic.Embedder) fn.Stage[Prepared, Prepared] {
	return func(ctx context.Context, in Prepared) fn.Result[Prepared] {
		if e == nil {
			return fn.Ok(in)
		}
		vecs, err := e.Embed(ctx, []string{in.Document.Text})
		if err != nil {
			return fn.Err[Prepared](fmt.Errorf("embed: %w", err))
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return fn.Err[Prepared](fmt.Errorf("embed %s: %w", in.Part.ID, domain.ErrEmptyEmbedding))
		}
		in.Document.Vector = vecs[0]
		return fn.Ok(in)
	}
}

// NewStore creates a stage that writes the part to the graph and its
// vector to the vector store.
func NewStore(vs VectorWriter, gs GraphWriter) fn.Stage[Prepared, string] {
	return func(ctx context.Context, in Prepared) fn.Result[string] {
		if gs != nil {
			if err := gs.SaveParts(ctx, []domain.Part{in.Part}); err != nil {
				return fn.Err[string](fmt.Errorf("graph save: %w", err))
			}
		}
		if vs != nil && len(in.Document.Vector) > 0 {
			if err := vs.EnsureCollection(ctx, len(in.Document.Vector)); err != nil {
				return fn.Err[string](fmt.Errorf("vector collection: %w", err))
			}
			if err := vs.Upsert(ctx, []domain.Document{in.Document}); err != nil {
				return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
			}
		}
		return fn.Ok(in.Part.ID)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[domain.Part, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Validate → Document → Record → Embed → Store, each traced and logged.
	validated := fn.TracedStage("ingest.validate", fn.Then(LoggedTap[domain.Part]("validate", log), Validate))
	documented := fn.Then(validated, fn.Then(LoggedTap[domain.Part]("document", log), ToDocument))
	recorded := fn.Then(documented, fn.TracedStage("ingest.record", fn.Then(LoggedTap[Prepared]("record", log), NewRecord(deps.Catalog))))
	embedded := fn.Then(recorded, fn.TracedStage("ingest.embed", fn.Then(LoggedTap[Prepared]("embed", log), NewEmbed(deps.Embedder))))
	stored := fn.Then(embedded, fn.TracedStage("ingest.store", fn.Then(LoggedTap[Prepared]("store", log), NewStore(deps.Vectors, deps.Graph))))

	return stored
}

// IngestAll runs every part through the pipeline with bounded concurrency.
// Results follow input order.
func IngestAll(ctx context.Context, deps Deps, parts []domain.Part, workers int) []fn.Result[string] {
	return fn.BatchStage(workers, NewPipeline(deps))(ctx, parts)
}
