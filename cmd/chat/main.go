// Package main implements a command line client for the PartSelect
// assistant. It runs the same routing and generation as the API server
// in-process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
	"github.com/WessleyAI/partselect-assistant/engine/semantic"
	"github.com/WessleyAI/partselect-assistant/pkg/llm"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Config holds all environment-based configuration.
type Config struct {
	CatalogPath     string
	DefaultProvider string
	LogLevel        string
	IndexBackend    string
	QdrantURL       string
	Collection      string
	LLM             llm.Config
}

func loadConfig() Config {
	def, _ := domain.NormalizeProvider(envOr("DEFAULT_PROVIDER", domain.ProviderDeepSeek), domain.ProviderDeepSeek)
	return Config{
		CatalogPath:     envOr("CATALOG_PATH", "data/partselect_parts.json"),
		DefaultProvider: def,
		LogLevel:        envOr("LOG_LEVEL", "warn"),
		IndexBackend:    envOr("INDEX_BACKEND", "memory"),
		QdrantURL:       envOr("QDRANT_URL", "localhost:6334"),
		Collection:      envOr("QDRANT_COLLECTION", "partselect_parts"),
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
			Timeout:          envDuration("LLM_TIMEOUT", 30*time.Second),
			RPS:              envFloat("LLM_RPS", 5),
		},
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return d
}

func envDuration(k string, d time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return v
	}
	return d
}

// app carries what every subcommand needs. newAssistant is swapped in tests.
type app struct {
	cfg          Config
	logger       *slog.Logger
	newAssistant func(ctx context.Context) (*rag.Assistant, error)
}

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	a.newAssistant = a.buildAssistant

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "partselect-chat",
		Short:        "Ask the PartSelect assistant about refrigerator and dishwasher parts",
		SilenceUsage: true,
	}
	root.AddCommand(newAskCmd(a), newReplCmd(a), newIndexCmd(a))
	return root
}

// buildAssistant loads the catalog and, when embeddings are configured,
// builds the retrieval index.
func (a *app) buildAssistant(ctx context.Context) (*rag.Assistant, error) {
	store, err := catalog.LoadFile(a.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	var index rag.Index
	embedder, err := llm.NewEmbedderFromConfig(a.cfg.LLM)
	if err != nil {
		a.logger.Warn("embeddings unavailable, answering without retrieval", "err", err)
	} else if a.cfg.IndexBackend == "qdrant" {
		vs, err := semantic.NewVectorStore(a.cfg.QdrantURL, a.cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("qdrant connect: %w", err)
		}
		qi := semantic.NewQdrantIndex(vs, embedder, a.logger)
		// Reuse an index another process already populated.
		if err := qi.Attach(ctx); err != nil {
			a.logger.Info("qdrant collection empty, building", "err", err)
			if err := qi.Build(ctx, store.Parts()); err != nil {
				a.logger.Warn("index build failed", "err", err)
			}
		}
		index = qi
	} else {
		idx := semantic.NewIndex(embedder, a.logger)
		if err := idx.Build(ctx, store.Parts()); err != nil {
			a.logger.Warn("index build failed", "err", err)
		}
		index = idx
	}

	return rag.New(rag.Options{
		Catalog:   store,
		Index:     index,
		Generator: llm.NewRouterFromConfig(a.cfg.DefaultProvider, a.cfg.LLM),
		Logger:    a.logger,
	}), nil
}
