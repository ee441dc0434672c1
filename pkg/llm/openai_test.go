package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/pkg/fn"
)

func TestOpenAIChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Check the water line.  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIConfig{Name: domain.ProviderDeepSeek, BaseURL: srv.URL + "/", APIKey: "sk-test", ChatModel: "deepseek-chat"})
	out, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, DefaultOptions)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "Check the water line." {
		t.Fatalf("unexpected output %q", out)
	}
	if got.Model != "deepseek-chat" || got.Temperature != 0.7 || got.MaxTokens != 350 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	if _, err := c.Chat(context.Background(), nil, DefaultOptions); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIEmbedOrdersByIndexAndBatches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-small" {
			t.Errorf("unexpected model %q", req.Model)
		}
		// Return data out of order; the client must sort by index.
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(len(req.Input[i]))}})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", EmbedModel: "text-embedding-3-small", EmbedBatch: 2})
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 batched calls, got %d", calls)
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Fatalf("vec %d = %v, want %v", i, vecs[i], want)
		}
	}
}

func TestOpenAIEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmptyEmbedding) {
		t.Fatalf("expected ErrEmptyEmbedding, got %v", err)
	}
}

func TestOpenAIMissingKeyIsPermanent(t *testing.T) {
	c := NewOpenAI(OpenAIConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Chat(context.Background(), nil, DefaultOptions)
	if !errors.Is(err, ErrNoAPIKey) || !fn.IsPermanent(err) {
		t.Fatalf("expected permanent ErrNoAPIKey, got %v", err)
	}
}

func TestOpenAIStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		permanent bool
	}{
		{"bad request", http.StatusBadRequest, true},
		{"unauthorized", http.StatusUnauthorized, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, `{"error":"nope"}`, tt.code)
			}))
			defer srv.Close()

			c := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
			_, err := c.Chat(context.Background(), nil, DefaultOptions)
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.code {
				t.Fatalf("expected StatusError %d, got %v", tt.code, err)
			}
			if fn.IsPermanent(err) != tt.permanent {
				t.Fatalf("permanent = %v, want %v", fn.IsPermanent(err), tt.permanent)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter("3"); got.Seconds() != 3 {
		t.Fatalf("got %v", got)
	}
	if got := retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"); got != 0 {
		t.Fatalf("dates should read as zero, got %v", got)
	}
}
