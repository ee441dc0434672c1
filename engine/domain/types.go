// Package domain defines the core parts-catalog types, routing outcomes, and
// validation shared by the assistant engine. It is the validation gate at
// catalog load and ingest entry points.
package domain

// Part is a single catalog record. Parts are immutable once loaded.
type Part struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	CompatibleModels    []string `json:"compatible_models"`
	InstallInstructions string   `json:"install_instructions"`
}

// FitsModel reports whether model appears in the part's compatible-model list.
// Comparison is exact.
func (p Part) FitsModel(model string) bool {
	for _, m := range p.CompatibleModels {
		if m == model {
			return true
		}
	}
	return false
}

// Document is the indexed form of a Part: the flattened text blob and its
// embedding vector.
type Document struct {
	PartID string    `json:"part_id"`
	Text   string    `json:"text"`
	Vector []float32 `json:"-"`
}

// Hit is a single retrieval result.
type Hit struct {
	Score    float64  `json:"score"`
	Document `json:"document"`
}

// Route is the routing decision taken for one incoming message.
type Route int

const (
	RouteRuleMatch  Route = iota // a deterministic rule answered
	RouteGeneral                 // not part-oriented, free-form generation
	RouteGrounded                // part-oriented, retrieval context above threshold
	RouteUngrounded              // part-oriented, no usable context
)

func (r Route) String() string {
	switch r {
	case RouteRuleMatch:
		return "rule"
	case RouteGeneral:
		return "general"
	case RouteGrounded:
		return "grounded"
	case RouteUngrounded:
		return "ungrounded"
	default:
		return "unknown"
	}
}

// Provider names accepted by the answer generator.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)

// KnownProviders is the set of recognised provider names.
var KnownProviders = map[string]bool{
	ProviderOpenAI:   true,
	ProviderDeepSeek: true,
	ProviderOllama:   true,
}
