package rag

import "time"

// NATS subjects for assistant events.
const (
	SubjectChatRouted    = "partselect.chat.routed"
	SubjectCatalogReload = "partselect.catalog.reload"
)

// ChatRouted records how one message was answered. Message text is not
// included.
type ChatRouted struct {
	Route    string    `json:"route"`
	Rule     string    `json:"rule,omitempty"`
	Provider string    `json:"provider,omitempty"`
	TopScore float64   `json:"top_score"`
	PartID   string    `json:"part_id,omitempty"`
	ModelID  string    `json:"model_id,omitempty"`
	Failed   bool      `json:"failed,omitempty"`
	At       time.Time `json:"at"`
}

// NewChatRouted builds the event for reply.
func NewChatRouted(r Reply, failed bool, at time.Time) ChatRouted {
	return ChatRouted{
		Route:    r.Route.String(),
		Rule:     r.Rule,
		Provider: r.Provider,
		TopScore: r.TopScore,
		PartID:   r.PartID,
		ModelID:  r.ModelID,
		Failed:   failed,
		At:       at.UTC(),
	}
}

// CatalogReload asks API instances to reload the catalog file and rebuild
// their index.
type CatalogReload struct {
	Reason string `json:"reason,omitempty"`
}
