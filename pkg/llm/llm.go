// Package llm talks to chat-completion and embedding providers: any
// OpenAI-compatible endpoint (OpenAI, DeepSeek) and a local Ollama server.
// Calls are guarded by retry, a circuit breaker and a rate limiter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WessleyAI/partselect-assistant/pkg/fn"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-request generation settings.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// DefaultOptions are the settings every assistant answer uses.
var DefaultOptions = Options{Temperature: 0.7, MaxTokens: 350}

// Chatter produces a completion for a conversation.
type Chatter interface {
	Chat(ctx context.Context, msgs []Message, opts Options) (string, error)
}

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrNoAPIKey is returned when a hosted provider has no credentials.
var ErrNoAPIKey = errors.New("llm: missing API key")

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: %s: status %d: %s", e.Provider, e.Code, e.Body)
}

// classify marks a failed response for fn.Retry: rate limits wait for the
// server-advised delay, server errors retry, other client errors stop.
func classify(provider string, resp *http.Response, body []byte) error {
	err := &StatusError{Provider: provider, Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 256)}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fn.After(err, retryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return err
	default:
		return fn.Permanent(err)
	}
}

// retryAfter parses a delay-seconds Retry-After value. HTTP dates are not
// used by the providers we call and read as zero.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
