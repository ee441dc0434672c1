package rag

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/pkg/partnlp"
)

var (
	installKeywords = []string{"install", "installation", "how to", "how do i"}
	intentKeywords  = []string{
		"part", "ps", "install", "installation", "compatible", "fit", "fits",
		"replace", "replacement", "wiring", "mount", "valve", "bin", "gasket",
		"filter", "heater", "leak", "leaking", "ice maker", "error code",
	}
)

// Turn is one message with everything the rules look at, resolved once.
type Turn struct {
	Message string // trimmed
	Lower   string
	partnlp.Entities
	Part  domain.Part // valid when Known
	Known bool        // the extracted part is in the catalog
}

// NewTurn extracts entities from a trimmed message and resolves the part
// against store.
func NewTurn(message string, store *catalog.Store) *Turn {
	t := &Turn{
		Message:  message,
		Lower:    strings.ToLower(message),
		Entities: partnlp.Extract(message),
	}
	if t.HasPart() && store != nil {
		t.Part, t.Known = store.Get(t.PartID)
	}
	return t
}

// PartIntent reports whether the message is about parts at all.
func (t *Turn) PartIntent() bool {
	return t.HasPart() || t.HasModel() || partnlp.ContainsAny(t.Lower, intentKeywords)
}

// Rule answers a message deterministically when Match holds.
type Rule struct {
	Name   string
	Match  func(*Turn) bool
	Handle func(*Turn) string
}

// DefaultRules is the rule chain in evaluation order; the first match wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "direct-lookup",
			Match: func(t *Turn) bool {
				return strings.HasPrefix(strings.ToUpper(t.Message), "PS") && t.Known
			},
			Handle: func(t *Turn) string {
				return fmt.Sprintf("%s - %s (for %s)", t.Part.ID, t.Part.Name, t.Part.Type)
			},
		},
		{
			Name: "installation",
			Match: func(t *Turn) bool {
				return t.Known && partnlp.ContainsAny(t.Lower, installKeywords)
			},
			Handle: func(t *Turn) string {
				return fmt.Sprintf("Installation steps for part %s:\n%s", t.Part.ID, t.Part.InstallInstructions)
			},
		},
		{
			Name: "compatibility",
			Match: func(t *Turn) bool {
				return t.Known && t.HasModel()
			},
			Handle: func(t *Turn) string {
				if t.Part.FitsModel(t.ModelID) {
					return fmt.Sprintf("Model %s is compatible with part %s - %s.", t.ModelID, t.Part.ID, t.Part.Name)
				}
				return fmt.Sprintf("No, model %s is not listed as compatible with part %s.", t.ModelID, t.Part.ID)
			},
		},
		{
			Name: "ice-maker",
			Match: func(t *Turn) bool {
				return strings.Contains(t.Lower, "ice maker") &&
					strings.Contains(t.Lower, "whirlpool") &&
					(strings.Contains(t.Lower, "not working") || strings.Contains(t.Lower, "no ice"))
			},
			Handle: func(*Turn) string { return IceMakerAnswer },
		},
		{
			Name: "unknown-part",
			Match: func(t *Turn) bool {
				return t.HasPart() && !t.Known
			},
			Handle: func(t *Turn) string {
				return fmt.Sprintf("I couldn't find part %s in our catalog. Please double-check the part number.", t.PartID)
			},
		},
	}
}
