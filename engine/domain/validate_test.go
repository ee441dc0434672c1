package domain

import (
	"errors"
	"testing"
)

func TestValidatePartID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"PS11752778", true},
		{"PS1234567", true},
		{"PS123456", false},
		{"ps11752778", false},
		{"PS11752778X", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidatePartID(tt.id)
			if tt.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPartID) {
				t.Fatalf("expected ErrInvalidPartID, got %v", err)
			}
		})
	}
}

func TestValidatePart_MissingName(t *testing.T) {
	err := ValidatePart(Part{ID: "PS11752778", Type: "Refrigerator"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected ValidationError on name, got %v", err)
	}
}

func TestValidatePart_MissingType(t *testing.T) {
	err := ValidatePart(Part{ID: "PS11752778", Name: "Inlet Valve"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestValidatePart_Valid(t *testing.T) {
	p := Part{ID: "PS11752778", Name: "Inlet Valve", Type: "Refrigerator"}
	if err := ValidatePart(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeMessage(t *testing.T) {
	if _, err := NormalizeMessage("   \t\n"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	got, err := NormalizeMessage("  PS11752778  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "PS11752778" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		wantKnown bool
	}{
		{"openai", "openai", true},
		{"  DeepSeek ", "deepseek", true},
		{"OLLAMA", "ollama", true},
		{"", "deepseek", true},
		{"gemini", "deepseek", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeProvider(tt.in, ProviderDeepSeek)
		if got != tt.want || ok != tt.wantKnown {
			t.Errorf("NormalizeProvider(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.wantKnown)
		}
	}
}

func TestPartFitsModel(t *testing.T) {
	p := Part{CompatibleModels: []string{"WDT780SAEM1", "WRS325SDHZ"}}
	if !p.FitsModel("WRS325SDHZ") {
		t.Fatal("expected fit")
	}
	if p.FitsModel("wrs325sdhz") {
		t.Fatal("comparison must be exact")
	}
}

func TestRouteString(t *testing.T) {
	tests := map[Route]string{
		RouteRuleMatch:  "rule",
		RouteGeneral:    "general",
		RouteGrounded:   "grounded",
		RouteUngrounded: "ungrounded",
		Route(99):       "unknown",
	}
	for r, want := range tests {
		if r.String() != want {
			t.Errorf("Route(%d).String() = %q, want %q", int(r), r.String(), want)
		}
	}
}
