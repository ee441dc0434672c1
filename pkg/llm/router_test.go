package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

type recordingChatter struct {
	msgs  []Message
	opts  Options
	reply string
	err   error
}

func (r *recordingChatter) Chat(ctx context.Context, msgs []Message, opts Options) (string, error) {
	r.msgs, r.opts = msgs, opts
	return r.reply, r.err
}

func TestRouterGenerateSelectsSystemPrompt(t *testing.T) {
	tests := []struct {
		allowFree bool
		system    string
	}{
		{true, SystemFree},
		{false, SystemStrict},
	}
	for _, tt := range tests {
		rc := &recordingChatter{reply: "answer"}
		r := NewRouter(domain.ProviderDeepSeek, DefaultOptions)
		r.Register(domain.ProviderDeepSeek, rc)

		out, err := r.Generate(context.Background(), "", "prompt", tt.allowFree)
		if err != nil || out != "answer" {
			t.Fatalf("unexpected %q %v", out, err)
		}
		if len(rc.msgs) != 2 || rc.msgs[0].Content != tt.system || rc.msgs[1].Content != "prompt" {
			t.Fatalf("allowFree=%v: unexpected messages %+v", tt.allowFree, rc.msgs)
		}
		if rc.opts != DefaultOptions {
			t.Fatalf("unexpected options %+v", rc.opts)
		}
	}
}

func TestRouterExplicitProvider(t *testing.T) {
	ds := &recordingChatter{reply: "ds"}
	oa := &recordingChatter{reply: "oa"}
	r := NewRouter(domain.ProviderDeepSeek, DefaultOptions)
	r.Register(domain.ProviderDeepSeek, ds)
	r.Register(domain.ProviderOpenAI, oa)

	out, _ := r.Generate(context.Background(), domain.ProviderOpenAI, "p", true)
	if out != "oa" || ds.msgs != nil {
		t.Fatalf("expected openai to answer, got %q", out)
	}
	if got := r.Providers(); len(got) != 2 || got[0] != "deepseek" || got[1] != "openai" {
		t.Fatalf("unexpected providers %v", got)
	}
}

func TestRouterUnknownProvider(t *testing.T) {
	r := NewRouter(domain.ProviderDeepSeek, DefaultOptions)
	_, err := r.Generate(context.Background(), "mistral", "p", true)
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRouterWrapsChatError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(domain.ProviderOllama, DefaultOptions)
	r.Register(domain.ProviderOllama, &recordingChatter{err: boom})
	if _, err := r.Generate(context.Background(), "", "p", false); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}
