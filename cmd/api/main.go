// Package main implements the PartSelect assistant API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/graph"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
	"github.com/WessleyAI/partselect-assistant/engine/semantic"
	"github.com/WessleyAI/partselect-assistant/pkg/llm"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
	"github.com/WessleyAI/partselect-assistant/pkg/mid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds all environment-based configuration.
type Config struct {
	Port            string
	CatalogPath     string
	DefaultProvider string
	LogLevel        string
	CORSOrigin      string

	LLM llm.Config

	IndexBackend string // memory or qdrant
	QdrantURL    string
	Collection   string

	// Optional; empty disables.
	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string
	NATSURL   string
}

func loadConfig() Config {
	def, _ := domain.NormalizeProvider(envOr("DEFAULT_PROVIDER", domain.ProviderDeepSeek), domain.ProviderDeepSeek)
	return Config{
		Port:            envOr("PORT", "8080"),
		CatalogPath:     envOr("CATALOG_PATH", "data/partselect_parts.json"),
		DefaultProvider: def,
		LogLevel:        envOr("LOG_LEVEL", "info"),
		CORSOrigin:      envOr("CORS_ORIGIN", "*"),
		LLM: llm.Config{
			OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    envOr("OPENAI_BASE_URL", llm.OpenAIBaseURL),
			OpenAIChatModel:  envOr("OPENAI_CHAT_MODEL", llm.DefaultOpenAIChatModel),
			DeepSeekKey:      os.Getenv("DEEPSEEK_API_KEY"),
			DeepSeekBaseURL:  envOr("DEEPSEEK_BASE", llm.DeepSeekBaseURL),
			DeepSeekModel:    envOr("DEEPSEEK_MODEL", llm.DefaultDeepSeekModel),
			OllamaURL:        envOr("OLLAMA_URL", llm.DefaultOllamaURL),
			OllamaChatModel:  envOr("OLLAMA_CHAT_MODEL", llm.DefaultOllamaChatModel),
			OllamaEmbedModel: envOr("OLLAMA_EMBED_MODEL", llm.DefaultOllamaEmbedModel),
			EmbedProvider:    envOr("EMBED_PROVIDER", domain.ProviderOpenAI),
			EmbedModel:       envOr("EMBED_MODEL", llm.DefaultEmbedModel),
			EmbedCacheSize:   envInt("EMBED_CACHE_SIZE", llm.DefaultEmbedCacheSize),
			Timeout:          envDuration("LLM_TIMEOUT", 30*time.Second),
			RPS:              envFloat("LLM_RPS", 5),
		},
		IndexBackend: envOr("INDEX_BACKEND", "memory"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "partselect_parts"),
		Neo4jURL:     os.Getenv("NEO4J_URL"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		NATSURL:      os.Getenv("NATS_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func main() {
	// Real environment values win over .env.
	_ = godotenv.Load()
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	cfg.LLM.Metrics = reg

	store, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "path", cfg.CatalogPath, "parts", store.Len())

	router := llm.NewRouterFromConfig(cfg.DefaultProvider, cfg.LLM)

	// --- Retrieval index ---
	var index rag.Index
	embedder, err := llm.NewEmbedderFromConfig(cfg.LLM)
	if err != nil {
		logger.Warn("embeddings unavailable, answering without retrieval", "err", err)
	} else {
		switch cfg.IndexBackend {
		case "qdrant":
			vs, err := semantic.NewVectorStore(cfg.QdrantURL, cfg.Collection)
			if err != nil {
				return fmt.Errorf("qdrant connect: %w", err)
			}
			defer vs.Close()
			index = semantic.NewQdrantIndex(vs, embedder, logger)
		default:
			index = semantic.NewIndex(embedder, logger)
		}
	}

	assistant := rag.New(rag.Options{
		Catalog:   store,
		Index:     index,
		Generator: router,
		Metrics:   reg,
		Logger:    logger,
	})
	if index != nil {
		if err := assistant.RebuildIndex(ctx); err != nil {
			logger.Warn("index build failed, answering without retrieval", "err", err)
		} else {
			_, docs := assistant.IndexStatus()
			logger.Info("index built", "backend", cfg.IndexBackend, "documents", docs)
		}
	}

	srv := &server{
		assistant:       assistant,
		catalogPath:     cfg.CatalogPath,
		defaultProvider: cfg.DefaultProvider,
		metrics:         reg,
		logger:          logger,
		now:             time.Now,
	}

	// --- Connect to Neo4j ---
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())

		g := graph.New(driver)
		if err := g.EnsureSchema(ctx); err != nil {
			logger.Warn("neo4j schema setup failed", "err", err)
		}
		if err := g.SyncCatalog(ctx, store.Parts()); err != nil {
			logger.Warn("neo4j catalog sync failed", "err", err)
		}
		srv.compat = g
	}

	// --- Connect to NATS ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("partselect-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		srv.events = nc

		sub, err := srv.subscribeReload(nc)
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
	}

	// --- Build HTTP server ---
	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("partselect-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "default_provider", cfg.DefaultProvider)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
