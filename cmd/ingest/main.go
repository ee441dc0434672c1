// Package main runs the catalog ingest worker. It consumes part upserts from
// NATS, records them in the catalog file and writes them to the compatibility
// graph and the vector store, or with -once seeds every part from the catalog
// file and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/graph"
	"github.com/WessleyAI/partselect-assistant/engine/ingest"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
	"github.com/WessleyAI/partselect-assistant/engine/semantic"
	"github.com/WessleyAI/partselect-assistant/pkg/llm"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
	"github.com/WessleyAI/partselect-assistant/pkg/natsutil"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()

	var (
		once        = flag.Bool("once", false, "ingest every part in the catalog file and exit")
		catalogPath = flag.String("catalog", envOr("CATALOG_PATH", "data/partselect_parts.json"), "catalog JSON file; seeded by -once, updated by the worker")
		workers     = flag.Int("workers", 4, "concurrent parts for -once")
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address; empty disables")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "partselect_parts"), "Qdrant collection name")
		neo4jURL    = flag.String("neo4j", os.Getenv("NEO4J_URL"), "Neo4j bolt URL; empty disables")
		neo4jUser   = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		metricsPort = flag.String("metrics-port", envOr("METRICS_PORT", "9091"), "port for /metrics; empty disables")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	deps := ingest.Deps{Metrics: reg, Logger: log}

	// Embeddings
	embedder, err := llm.NewEmbedderFromConfig(llm.Config{
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    envOr("OPENAI_BASE_URL", llm.OpenAIBaseURL),
		OllamaURL:        envOr("OLLAMA_URL", llm.DefaultOllamaURL),
		OllamaEmbedModel: envOr("OLLAMA_EMBED_MODEL", llm.DefaultOllamaEmbedModel),
		EmbedProvider:    envOr("EMBED_PROVIDER", domain.ProviderOpenAI),
		EmbedModel:       envOr("EMBED_MODEL", llm.DefaultEmbedModel),
		Timeout:          30 * time.Second,
		Metrics:          reg,
	})
	if err != nil {
		log.Warn("embeddings unavailable, vectors will not be written", "error", err)
	} else {
		deps.Embedder = embedder
	}

	// Connect Qdrant
	if *qdrantAddr != "" && deps.Embedder != nil {
		vs, err := semantic.NewVectorStore(*qdrantAddr, *collection)
		if err != nil {
			log.Error("qdrant connect failed", "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		deps.Vectors = vs
		log.Info("using Qdrant", "addr", *qdrantAddr, "collection", *collection)
	}

	// Connect Neo4j
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Error("neo4j connect failed", "error", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Error("neo4j verify failed", "error", err)
			os.Exit(1)
		}
		g := graph.New(driver)
		if err := g.EnsureSchema(ctx); err != nil {
			log.Warn("neo4j schema setup failed", "error", err)
		}
		deps.Graph = g
		log.Info("connected to Neo4j")
	}

	if *metricsPort != "" {
		go serveMetrics(log, *metricsPort, reg)
	}

	if *once {
		if err := runOnce(ctx, deps, *catalogPath, *workers, *natsURL); err != nil {
			log.Error("seed failed", "error", err)
			os.Exit(1)
		}
		return
	}

	deps.Catalog = catalog.NewFileWriter(*catalogPath)
	if err := runWorker(ctx, deps, *natsURL); err != nil {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func serveMetrics(log *slog.Logger, port string, reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", "error", err)
	}
}

func runWorker(ctx context.Context, deps ingest.Deps, natsURL string) error {
	nc, err := nats.Connect(natsURL, nats.Name("partselect-ingest"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	deps.Logger.Info("ingest worker listening", "subject", ingest.UpsertSubject, "dlq", ingest.DLQSubject)
	<-ctx.Done()
	deps.Logger.Info("shutting down")
	return nil
}

// runOnce ingests the whole catalog file. When NATS is reachable, API
// instances are told to reload afterwards.
func runOnce(ctx context.Context, deps ingest.Deps, path string, workers int, natsURL string) error {
	store, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}

	ok, failed := seed(ctx, deps, store.Parts(), workers)
	deps.Logger.Info("seed complete", "parts", store.Len(), "ingested", ok, "failed", failed)

	nc, err := nats.Connect(natsURL, nats.Name("partselect-ingest"))
	if err != nil {
		deps.Logger.Warn("nats unavailable, API instances not notified", "error", err)
	} else {
		defer nc.Close()
		if err := notifyReload(ctx, nc, fmt.Sprintf("seeded %d parts from %s", ok, path)); err != nil {
			deps.Logger.Warn("reload notify failed", "error", err)
		} else if err := nc.Flush(); err != nil {
			deps.Logger.Warn("nats flush failed", "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d parts failed", failed, store.Len())
	}
	return nil
}

// seed runs parts through the pipeline and counts outcomes.
func seed(ctx context.Context, deps ingest.Deps, parts []domain.Part, workers int) (ok, failed int) {
	for i, r := range ingest.IngestAll(ctx, deps, parts, workers) {
		if _, err := r.Unwrap(); err != nil {
			failed++
			deps.Logger.Error("part failed", "part_id", parts[i].ID, "error", err)
			deps.Metrics.IngestProcessed.WithLabelValues("failed").Inc()
			continue
		}
		ok++
		deps.Metrics.IngestProcessed.WithLabelValues("ok").Inc()
	}
	return ok, failed
}

func notifyReload(ctx context.Context, p natsutil.MsgPublisher, reason string) error {
	return natsutil.Publish(ctx, p, rag.SubjectCatalogReload, rag.CatalogReload{Reason: reason})
}
