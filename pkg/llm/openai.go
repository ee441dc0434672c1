package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/pkg/fn"
)

// Base URLs of the hosted OpenAI-compatible providers.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com"
)

const maxResponseBytes = 4 << 20

// OpenAIConfig configures an OpenAI-compatible client.
type OpenAIConfig struct {
	Name       string // provider label used in errors and metrics
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
	// EmbedBatch caps texts per embeddings request; 0 sends one request.
	EmbedBatch int
	HTTPClient *http.Client
}

// OpenAI is a client for the /chat/completions and /embeddings endpoints.
type OpenAI struct {
	cfg  OpenAIConfig
	http *http.Client
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = domain.ProviderOpenAI
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OpenAI{cfg: cfg, http: hc}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Chat sends msgs to the chat completions endpoint and returns the first
// choice's content.
func (c *OpenAI) Chat(ctx context.Context, msgs []Message, opts Options) (string, error) {
	var out chatResponse
	req := chatRequest{Model: c.cfg.ChatModel, Messages: msgs, Temperature: opts.Temperature, MaxTokens: opts.MaxTokens}
	if err := c.post(ctx, "/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm: %s: chat: no choices in response", c.cfg.Name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Embed embeds texts, batching by EmbedBatch. Results follow input order.
func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	size := c.cfg.EmbedBatch
	if size <= 0 {
		size = len(texts)
	}
	vecs := make([][]float32, 0, len(texts))
	for _, batch := range fn.Chunk(texts, size) {
		got, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, got...)
	}
	return vecs, nil
}

func (c *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: c.cfg.EmbedModel, Input: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("llm: %s: embed: got %d vectors for %d texts: %w",
			c.cfg.Name, len(out.Data), len(texts), domain.ErrEmptyEmbedding)
	}
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("llm: %s: embed [%d]: %w", c.cfg.Name, i, domain.ErrEmptyEmbedding)
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (c *OpenAI) post(ctx context.Context, path string, in, out any) error {
	if c.cfg.APIKey == "" {
		return fn.Permanent(fmt.Errorf("%w for %s", ErrNoAPIKey, c.cfg.Name))
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fn.Permanent(fmt.Errorf("llm: %s: encode: %w", c.cfg.Name, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fn.Permanent(fmt.Errorf("llm: %s: %w", c.cfg.Name, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: %s: %s: %w", c.cfg.Name, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("llm: %s: read: %w", c.cfg.Name, err)
	}
	if resp.StatusCode/100 != 2 {
		return classify(c.cfg.Name, resp, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("llm: %s: decode: %w", c.cfg.Name, err)
	}
	return nil
}
