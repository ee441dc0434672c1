package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama uses Ollama's native HTTP API for chat and embeddings.
type Ollama struct {
	baseURL    string
	chatModel  string
	embedModel string
	client     *http.Client
}

// NewOllama creates an Ollama client. Either model may be empty when that
// capability is not used.
func NewOllama(baseURL, chatModel, embedModel string) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		client:     &http.Client{},
	}
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaChatReq struct {
	Model    string            `json:"model"`
	Messages []Message         `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  ollamaChatOptions `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResp struct {
	Message Message `json:"message"`
}

func (c *Ollama) embed(ctx context.Context, text string) ([]float32, error) {
	var result ollamaEmbedResp
	if err := c.post(ctx, "/api/embeddings", ollamaEmbedReq{Model: c.embedModel, Prompt: text}, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("llm: ollama embed: %w", domain.ErrEmptyEmbedding)
	}
	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Embed embeds each text in turn; the embeddings endpoint takes one prompt.
func (c *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vals, err := c.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("llm: ollama embed batch [%d]: %w", i, err)
		}
		out[i] = vals
	}
	return out, nil
}

// Chat runs a non-streaming chat completion.
func (c *Ollama) Chat(ctx context.Context, msgs []Message, opts Options) (string, error) {
	var result ollamaChatResp
	req := ollamaChatReq{
		Model:    c.chatModel,
		Messages: msgs,
		Options:  ollamaChatOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	}
	if err := c.post(ctx, "/api/chat", req, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Message.Content), nil
}

func (c *Ollama) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("llm: ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return classify(domain.ProviderOllama, resp, data)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: ollama decode: %w", err)
	}
	return nil
}
