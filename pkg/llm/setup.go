package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
	"github.com/WessleyAI/partselect-assistant/pkg/resilience"
)

// Default model names.
const (
	DefaultOpenAIChatModel  = "gpt-4o-mini"
	DefaultEmbedModel       = "text-embedding-3-small"
	DefaultDeepSeekModel    = "deepseek-chat"
	DefaultOllamaChatModel  = "llama3"
	DefaultOllamaEmbedModel = "nomic-embed-text"
	DefaultEmbedCacheSize   = 512
)

// Config selects and configures the model providers.
type Config struct {
	OpenAIKey       string
	OpenAIBaseURL   string
	OpenAIChatModel string

	DeepSeekKey     string
	DeepSeekBaseURL string
	DeepSeekModel   string

	OllamaURL        string
	OllamaChatModel  string
	OllamaEmbedModel string

	// EmbedProvider is "openai" or "ollama".
	EmbedProvider  string
	EmbedModel     string
	EmbedCacheSize int

	Timeout    time.Duration // per attempt
	RPS        float64       // per provider; zero disables limiting
	Metrics    *metrics.Registry
	HTTPClient *http.Client
}

func (c Config) guard(name string) *Guard {
	return NewGuard(GuardOpts{
		Name:    name,
		Limiter: resilience.LimiterOpts{Rate: c.RPS, Burst: 1},
		Timeout: c.Timeout,
		Metrics: c.Metrics,
	})
}

// NewRouterFromConfig registers openai, deepseek and ollama, each behind its
// own Guard. Providers without credentials are still registered; calls to
// them fail permanently with ErrNoAPIKey.
func NewRouterFromConfig(def string, cfg Config) *Router {
	r := NewRouter(def, DefaultOptions)

	openai := NewOpenAI(OpenAIConfig{
		Name:       domain.ProviderOpenAI,
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIKey,
		ChatModel:  or(cfg.OpenAIChatModel, DefaultOpenAIChatModel),
		HTTPClient: cfg.HTTPClient,
	})
	r.Register(domain.ProviderOpenAI, cfg.guard(domain.ProviderOpenAI).Chatter(openai))

	deepseek := NewOpenAI(OpenAIConfig{
		Name:       domain.ProviderDeepSeek,
		BaseURL:    or(cfg.DeepSeekBaseURL, DeepSeekBaseURL),
		APIKey:     cfg.DeepSeekKey,
		ChatModel:  or(cfg.DeepSeekModel, DefaultDeepSeekModel),
		HTTPClient: cfg.HTTPClient,
	})
	r.Register(domain.ProviderDeepSeek, cfg.guard(domain.ProviderDeepSeek).Chatter(deepseek))

	ollama := NewOllama(or(cfg.OllamaURL, DefaultOllamaURL), or(cfg.OllamaChatModel, DefaultOllamaChatModel), "")
	r.Register(domain.ProviderOllama, cfg.guard(domain.ProviderOllama).Chatter(ollama))

	return r
}

// NewEmbedderFromConfig builds the guarded, cached embedder named by
// cfg.EmbedProvider. The openai embedder requires a key and returns
// ErrNoAPIKey without one.
func NewEmbedderFromConfig(cfg Config) (*CachedEmbedder, error) {
	var base Embedder
	name := or(cfg.EmbedProvider, domain.ProviderOpenAI)
	switch name {
	case domain.ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("llm: embedder %s: %w", name, ErrNoAPIKey)
		}
		base = NewOpenAI(OpenAIConfig{
			Name:       domain.ProviderOpenAI,
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIKey,
			EmbedModel: or(cfg.EmbedModel, DefaultEmbedModel),
			EmbedBatch: 100,
			HTTPClient: cfg.HTTPClient,
		})
	case domain.ProviderOllama:
		base = NewOllama(or(cfg.OllamaURL, DefaultOllamaURL), "", or(cfg.OllamaEmbedModel, DefaultOllamaEmbedModel))
	default:
		return nil, fmt.Errorf("llm: embedder %q: %w", name, domain.ErrUnknownProvider)
	}

	size := cfg.EmbedCacheSize
	if size <= 0 {
		size = DefaultEmbedCacheSize
	}
	return NewCachedEmbedder(cfg.guard(name+"-embed").Embedder(base), size)
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
