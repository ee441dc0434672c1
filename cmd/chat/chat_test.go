package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
)

type stubGenerator struct {
	err      error
	provider string
}

func (s *stubGenerator) Generate(_ context.Context, provider, _ string, _ bool) (string, error) {
	s.provider = provider
	return "generated", s.err
}

type stubIndex struct{ n int }

func (s *stubIndex) Retrieve(context.Context, string, int) ([]domain.Hit, error) { return nil, nil }
func (s *stubIndex) Build(_ context.Context, parts []domain.Part) error {
	s.n = len(parts)
	return nil
}
func (s *stubIndex) Built() bool { return s.n > 0 }
func (s *stubIndex) Len() int    { return s.n }

func testApp(gen *stubGenerator, index rag.Index) *app {
	store := catalog.New([]domain.Part{{
		ID:                  "PS11752778",
		Name:                "Inlet Valve",
		Type:                "Refrigerator",
		CompatibleModels:    []string{"WRS325SDHZ"},
		InstallInstructions: "1. Unplug the refrigerator.",
	}})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &app{cfg: Config{DefaultProvider: domain.ProviderDeepSeek, IndexBackend: "memory"}, logger: logger}
	a.newAssistant = func(ctx context.Context) (*rag.Assistant, error) {
		asst := rag.New(rag.Options{Catalog: store, Index: index, Generator: gen, Logger: logger})
		if index != nil {
			asst.RebuildIndex(ctx)
		}
		return asst, nil
	}
	return a
}

func execute(a *app, in string, args ...string) (string, error) {
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(in))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAsk_RuleMatch(t *testing.T) {
	gen := &stubGenerator{}
	out, err := execute(testApp(gen, nil), "", "ask", "PS11752778")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "PS11752778 - Inlet Valve (for Refrigerator)" {
		t.Fatalf("unexpected output %q", out)
	}
	if gen.provider != "" {
		t.Fatal("generator must not be called for rule matches")
	}
}

func TestAsk_ProviderFlag(t *testing.T) {
	gen := &stubGenerator{}
	out, err := execute(testApp(gen, nil), "", "ask", "--provider", "OpenAI", "any", "tips", "for", "cleaning?")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "generated" || gen.provider != "openai" {
		t.Fatalf("out=%q provider=%q", out, gen.provider)
	}
}

func TestAsk_GenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	out, _ := execute(testApp(gen, nil), "", "ask", "what", "is", "a", "defrost", "timer?")
	if strings.TrimSpace(out) != rag.FailureReply {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAsk_RequiresQuestion(t *testing.T) {
	if _, err := execute(testApp(&stubGenerator{}, nil), "", "ask"); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestRepl(t *testing.T) {
	in := "PS11752778\n\nhow do I install PS11752778?\nexit\nPS11752778\n"
	out, err := execute(testApp(&stubGenerator{}, nil), in, "repl")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "PS11752778 - Inlet Valve (for Refrigerator)") {
		t.Fatalf("missing lookup reply in %q", out)
	}
	if !strings.Contains(out, rag.EmptyMessageReply) {
		t.Fatalf("missing empty-message reply in %q", out)
	}
	if !strings.Contains(out, "Installation steps for part PS11752778") {
		t.Fatalf("missing install reply in %q", out)
	}
	if strings.Count(out, "(for Refrigerator)") != 1 {
		t.Fatal("input after exit must be ignored")
	}
}

func TestRepl_EOF(t *testing.T) {
	if _, err := execute(testApp(&stubGenerator{}, nil), "PS11752778", "repl"); err != nil {
		t.Fatalf("EOF should end the session cleanly, got %v", err)
	}
}

func TestIndexCommand(t *testing.T) {
	out, err := execute(testApp(&stubGenerator{}, &stubIndex{}), "", "index")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "index built:     true") || !strings.Contains(out, "index documents: 1") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestIndexCommand_NoIndex(t *testing.T) {
	out, err := execute(testApp(&stubGenerator{}, nil), "", "index")
	if err == nil {
		t.Fatal("expected an error when no index is available")
	}
	if !strings.Contains(out, "index built:     false") {
		t.Fatalf("unexpected output %q", out)
	}
}
